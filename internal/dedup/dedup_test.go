package dedup

import (
	"testing"
	"time"
)

func TestTitleSimilarity(t *testing.T) {
	t.Parallel()
	if got := TitleSimilarity("Dubai Weather Update", "dubai  weather update"); got != 100 {
		t.Fatalf("normalized-equal titles: got %v want 100", got)
	}
	a := TitleSimilarity("Dubai Weather Update", "Dubai Weather Updates")
	b := TitleSimilarity("Dubai Weather Updates", "Dubai Weather Update")
	if a != b {
		t.Fatalf("similarity should be symmetric: %v vs %v", a, b)
	}
	if a <= 90 {
		t.Fatalf("single-char edit should score high, got %v", a)
	}
	if got := TitleSimilarity("Dubai Weather Update", "Quarterly Earnings Call"); got > 40 {
		t.Fatalf("unrelated titles should score low, got %v", got)
	}
}

func TestContentSimilarityExtremes(t *testing.T) {
	t.Parallel()
	text := "Heavy rainfall expected across Dubai this weekend according to forecasters"
	if got := ContentSimilarity(text, text); got != 100 {
		t.Fatalf("identical content: got %v want 100", got)
	}
	if got := ContentSimilarity(text, "Completely different subject matter entirely unrelated topics discussed"); got != 0 {
		t.Fatalf("disjoint content: got %v want 0", got)
	}
}

func TestDateProximityBands(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		diff time.Duration
		want float64
	}{
		{0, 100},
		{30 * time.Minute, 100},
		{time.Hour, 100},
		{8 * 24 * time.Hour, 0},
	}
	for _, tc := range cases {
		if got := DateProximity(base, base.Add(tc.diff)); got != tc.want {
			t.Fatalf("diff %v: got %v want %v", tc.diff, got, tc.want)
		}
	}

	at24h := DateProximity(base, base.Add(24*time.Hour))
	if at24h < 49.9 || at24h > 50.1 {
		t.Fatalf("24h proximity should be ~50, got %v", at24h)
	}
	mid := DateProximity(base, base.Add(12*time.Hour))
	if mid <= at24h || mid >= 100 {
		t.Fatalf("12h proximity should sit between 50 and 100, got %v", mid)
	}
	if got := DateProximity(base, time.Time{}); got != 0 {
		t.Fatalf("zero timestamp: got %v want 0", got)
	}
}

func TestEntityOverlap(t *testing.T) {
	t.Parallel()
	if got := EntityOverlap("Dubai and Sharjah brace for storms", "Dubai Sharjah storm warning issued"); got == 0 {
		t.Fatal("shared entities should overlap")
	}
	if got := EntityOverlap("no capitals here at all", "Dubai Weather"); got != 0 {
		t.Fatalf("one side without entities: got %v want 0", got)
	}
}

func TestDetectDuplicate(t *testing.T) {
	t.Parallel()
	published := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	body := "Heavy rainfall is expected across Dubai this weekend. Authorities urged residents to avoid coastal roads. Emergency services remain on alert throughout the city."

	candidate := Document{
		Title:       "Dubai Weather Update: Heavy Rain Expected",
		Content:     body,
		SourceURL:   "https://feedsite.example/dubai-rain",
		PublishedAt: published.Add(30 * time.Minute),
		Tags:        []string{"weather"},
		Credibility: 80,
	}
	existing := Document{
		ID:          "entry-1",
		Title:       "Dubai Weather Update: Heavy Rain Expected This Weekend",
		Content:     body + " Flights from the international airport may face delays.",
		SourceURL:   "https://othersite.example/dubai-weather",
		PublishedAt: published,
		Tags:        []string{"weather", "uae"},
		Credibility: 60,
	}
	unrelated := Document{
		ID:          "entry-2",
		Title:       "Quarterly Earnings Beat Expectations",
		Content:     "The company reported record revenue growth across all segments this quarter.",
		PublishedAt: published,
	}

	res := NewEngine().Detect(candidate, []Document{unrelated, existing})
	if !res.IsDuplicate {
		t.Fatal("expected duplicate detection")
	}
	if res.Confidence < DefaultThreshold {
		t.Fatalf("confidence %v below threshold", res.Confidence)
	}
	if res.Matches[0].Document.ID != "entry-1" {
		t.Fatalf("top match should be entry-1, got %s", res.Matches[0].Document.ID)
	}
	for _, m := range res.Matches {
		if m.Document.ID == "entry-2" {
			t.Fatal("unrelated entry should not match")
		}
	}

	merge := res.SuggestedMerge
	if merge == nil {
		t.Fatal("expected merge proposal")
	}
	if merge.Title != existing.Title {
		t.Fatalf("merge should keep the longer title, got %q", merge.Title)
	}
	if len(merge.Sources) != 2 {
		t.Fatalf("merge should reference both sources, got %v", merge.Sources)
	}
	if merge.Credibility != 70 {
		t.Fatalf("merge credibility should be the mean, got %v", merge.Credibility)
	}
	if !merge.PublishedAt.Equal(published) {
		t.Fatalf("merge should keep the earlier timestamp, got %v", merge.PublishedAt)
	}
}

func TestDetectNoWindow(t *testing.T) {
	t.Parallel()
	res := NewEngine().Detect(Document{Title: "Anything"}, nil)
	if res.IsDuplicate {
		t.Fatal("empty window can never produce a duplicate")
	}
	if res.SuggestedMerge != nil {
		t.Fatal("no merge proposal without a match")
	}
}

func TestMergeParagraphsDropsNearDuplicates(t *testing.T) {
	t.Parallel()
	shared := "Heavy rainfall is expected across Dubai this weekend according to the national weather service."
	a := shared + "\n\nResidents should avoid low-lying areas."
	b := shared + "\n\nFlights may be delayed on Saturday."

	merged := mergeParagraphs(a, b)
	count := len(splitParagraphs(merged))
	if count != 3 {
		t.Fatalf("expected 3 unique paragraphs, got %d:\n%s", count, merged)
	}
}
