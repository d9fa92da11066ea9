package citations

import (
	"strings"
	"testing"

	"Muninn/internal/models"
	"Muninn/internal/rag/schema"
)

func textCandidate(chunkID, docID, content string, page int, norm float64) schema.Candidate {
	return schema.Candidate{
		Chunk: &schema.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Modality:   schema.ModalityText,
			Content:    content,
			Locator:    schema.Locator{Page: page},
		},
		Norm: norm,
	}
}

func audioCandidate(chunkID, docID, content string, start, end float64, norm float64) schema.Candidate {
	return schema.Candidate{
		Chunk: &schema.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Modality:   schema.ModalityAudio,
			Content:    content,
			Locator:    schema.Locator{StartSec: start, EndSec: end},
		},
		Norm: norm,
	}
}

func testDocs() map[string]*models.Document {
	return map[string]*models.Document{
		"doc-1": {ID: "doc-1", Filename: "report.pdf", Modality: "text"},
		"doc-2": {ID: "doc-2", Filename: "call.mp3", Modality: "audio"},
		"doc-3": {ID: "doc-3", Filename: "chart.png", Modality: "image"},
	}
}

func TestBindTwoMarkers(t *testing.T) {
	b := NewBinder(nil)
	markers := map[int]schema.Candidate{
		1: textCandidate("c1", "doc-1", "growth was strong", 3, 0.91),
		2: audioCandidate("c2", "doc-2", "risk remains elevated", 30.5, 48.0, 0.84),
	}

	citations, unresolved := b.Bind("The report shows growth [1] and risk [2].", markers, testDocs())
	if len(unresolved) != 0 {
		t.Errorf("unexpected unresolved markers %v", unresolved)
	}
	if len(citations) != 2 {
		t.Fatalf("got %d citations, want exactly 2", len(citations))
	}

	first := citations[0]
	if first.ID != 1 || first.Type != "text" || first.Source != "report.pdf" || first.DocumentID != "doc-1" {
		t.Errorf("first citation %+v", first)
	}
	if first.Page == nil || *first.Page != 3 {
		t.Errorf("first citation page %v, want 3", first.Page)
	}
	if first.StartTime != nil || first.EndTime != nil {
		t.Error("text citation must not carry timestamps")
	}
	if first.Similarity != 0.91 {
		t.Errorf("first citation similarity %v, want 0.91", first.Similarity)
	}

	second := citations[1]
	if second.ID != 2 || second.Type != "audio" || second.Source != "call.mp3" {
		t.Errorf("second citation %+v", second)
	}
	if second.StartTime == nil || *second.StartTime != 30.5 || second.EndTime == nil || *second.EndTime != 48.0 {
		t.Errorf("second citation time range [%v %v]", second.StartTime, second.EndTime)
	}
	if second.Page != nil {
		t.Error("audio citation must not carry a page")
	}
}

func TestBindRepeatedMarkerOnce(t *testing.T) {
	b := NewBinder(nil)
	markers := map[int]schema.Candidate{
		1: textCandidate("c1", "doc-1", "alpha", 1, 0.9),
	}

	citations, unresolved := b.Bind("First [1], later again [1], and once more [1].", markers, testDocs())
	if len(citations) != 1 {
		t.Errorf("repeated marker produced %d citations, want 1", len(citations))
	}
	if len(unresolved) != 0 {
		t.Errorf("unexpected unresolved markers %v", unresolved)
	}
}

func TestBindUnresolvedMarkerFlagged(t *testing.T) {
	b := NewBinder(nil)
	markers := map[int]schema.Candidate{
		1: textCandidate("c1", "doc-1", "alpha", 1, 0.9),
	}

	citations, unresolved := b.Bind("Grounded [1] but fabricated [7].", markers, testDocs())
	if len(citations) != 1 || citations[0].ID != 1 {
		t.Errorf("unexpected citations %v", citations)
	}
	if len(unresolved) != 1 || unresolved[0] != 7 {
		t.Errorf("unresolved = %v, want [7]", unresolved)
	}
}

func TestBindOrderFollowsAnswer(t *testing.T) {
	b := NewBinder(nil)
	markers := map[int]schema.Candidate{
		1: textCandidate("c1", "doc-1", "alpha", 1, 0.9),
		2: textCandidate("c2", "doc-1", "beta", 2, 0.8),
		3: textCandidate("c3", "doc-1", "gamma", 3, 0.7),
	}

	citations, _ := b.Bind("Conclusion [3] follows from [1] and [2].", markers, testDocs())
	if len(citations) != 3 {
		t.Fatalf("got %d citations, want 3", len(citations))
	}
	if citations[0].ID != 3 || citations[1].ID != 1 || citations[2].ID != 2 {
		t.Errorf("citation order [%d %d %d], want [3 1 2]",
			citations[0].ID, citations[1].ID, citations[2].ID)
	}
}

func TestBindNoMarkers(t *testing.T) {
	b := NewBinder(nil)
	citations, unresolved := b.Bind("An answer with no references at all.", nil, nil)
	if len(citations) != 0 || len(unresolved) != 0 {
		t.Errorf("expected nothing bound, got %v / %v", citations, unresolved)
	}
}

func TestBindContentPreviewTruncated(t *testing.T) {
	b := NewBinder(nil)
	long := strings.Repeat("r", 250)
	markers := map[int]schema.Candidate{
		1: textCandidate("c1", "doc-1", long, 1, 0.9),
	}

	citations, _ := b.Bind("See [1].", markers, testDocs())
	if len(citations) != 1 {
		t.Fatal("expected one citation")
	}
	want := strings.Repeat("r", 200) + "..."
	if citations[0].Content != want {
		t.Errorf("preview length %d, want 200 plus ellipsis", len(citations[0].Content))
	}

	short := "short content"
	markers[1] = textCandidate("c1", "doc-1", short, 1, 0.9)
	citations, _ = b.Bind("See [1].", markers, testDocs())
	if citations[0].Content != short {
		t.Errorf("short content altered: %q", citations[0].Content)
	}
}

func TestBindImageURL(t *testing.T) {
	resolver := func(doc *models.Document) string {
		return "/files/" + doc.ID
	}
	b := NewBinder(resolver)
	markers := map[int]schema.Candidate{
		1: {
			Chunk: &schema.Chunk{
				ID:         "c1",
				DocumentID: "doc-3",
				Modality:   schema.ModalityImage,
				Content:    "chart.png",
			},
			Norm: 0.77,
		},
	}

	citations, _ := b.Bind("As shown in [1].", markers, testDocs())
	if len(citations) != 1 {
		t.Fatal("expected one citation")
	}
	if citations[0].URL != "/files/doc-3" {
		t.Errorf("image citation URL %q", citations[0].URL)
	}
	if citations[0].Type != "image" || citations[0].Source != "chart.png" {
		t.Errorf("image citation %+v", citations[0])
	}
}

func TestBindUnknownDocumentFallsBack(t *testing.T) {
	b := NewBinder(nil)
	markers := map[int]schema.Candidate{
		1: textCandidate("c1", "doc-vanished", "orphan content", 1, 0.5),
	}

	citations, unresolved := b.Bind("Cites [1].", markers, map[string]*models.Document{})
	if len(unresolved) != 0 {
		t.Errorf("a resolvable chunk with a missing document row is still a citation, got unresolved %v", unresolved)
	}
	if len(citations) != 1 || citations[0].Source != "Unknown" {
		t.Errorf("expected Unknown source fallback, got %v", citations)
	}
}
