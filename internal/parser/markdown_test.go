package parser

import (
	"testing"

	"github.com/dgallion1/docclass/internal/chunker"
)

// paragraphs extracts filename's text and returns what the segmenter sees.
func paragraphs(t *testing.T, filename, src string) []string {
	t.Helper()
	text, err := Extract([]byte(src), filename, Options{})
	if err != nil {
		t.Fatalf("extract %s: %v", filename, err)
	}
	var out []string
	for _, c := range chunker.Segment(text) {
		out = append(out, c.Text)
	}
	return out
}

func assertParagraphs(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d paragraphs %q, got %d %q", len(want), want, len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestMarkdown_HeadingsAreTheirOwnParagraphs(t *testing.T) {
	src := `# Master Services Agreement

The parties agree as follows.

## Payment

Invoices are due in thirty days.

### Late fees

Interest accrues monthly.

## Termination

Either party may terminate with notice.
`
	assertParagraphs(t, paragraphs(t, "msa.md", src), []string{
		"Master Services Agreement",
		"The parties agree as follows.",
		"Payment",
		"Invoices are due in thirty days.",
		"Late fees",
		"Interest accrues monthly.",
		"Termination",
		"Either party may terminate with notice.",
	})
}

func TestMarkdown_TextBeforeFirstHeadingComesFirst(t *testing.T) {
	src := "Draft, do not circulate.\n\n# Proposal\n\nWe offer three tiers."
	assertParagraphs(t, paragraphs(t, "proposal.md", src), []string{
		"Draft, do not circulate.",
		"Proposal",
		"We offer three tiers.",
	})
}

func TestMarkdown_CodeFenceStaysOneParagraph(t *testing.T) {
	src := "# API\n\nEndpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nAuth is required."
	assertParagraphs(t, paragraphs(t, "api.md", src), []string{
		"API",
		"Endpoints:",
		"GET /api/users\nPOST /api/users",
		"Auth is required.",
	})
}

func TestMarkdown_InlineMarkupIsFlattened(t *testing.T) {
	src := "Some *emphasized* and **strong** words with a [link](https://example.com)."
	assertParagraphs(t, paragraphs(t, "inline.md", src), []string{
		"Some emphasized and strong words with a link.",
	})
}

func TestMarkdown_SegmentOffsetsAscend(t *testing.T) {
	text, err := Extract([]byte("# A\n\none\n\n## B\n\ntwo\n\nthree"), "offsets.md", Options{})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	chunks := chunker.Segment(text)
	if len(chunks) != 5 {
		t.Fatalf("expected 5 segments, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start < chunks[i-1].End {
			t.Errorf("segment %d starts at %d before previous end %d", i, chunks[i].Start, chunks[i-1].End)
		}
	}
}

func TestMarkdown_EmptyInputHasNoParagraphs(t *testing.T) {
	if got := paragraphs(t, "empty.md", ""); len(got) != 0 {
		t.Errorf("expected no paragraphs, got %q", got)
	}
}
