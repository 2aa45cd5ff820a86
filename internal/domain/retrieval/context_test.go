package retrieval

import (
	"strings"
	"testing"
)

// ============================================================================
// Context document tests
// ============================================================================

func TestContextRender(t *testing.T) {
	t.Parallel()

	doc := &Context{}
	doc.add(SectionSchema, "Table: race_wins")
	doc.add(SectionBusinessRules, "")          // empty bodies are dropped
	doc.add(SectionLearnings, "  \n")          // whitespace-only too
	doc.add(SectionLiveSchema, "live columns") // trailing section

	if doc.Empty() {
		t.Fatal("context with sections reported empty")
	}
	rendered := doc.Render()
	schemaAt := strings.Index(rendered, "## "+SectionSchema)
	liveAt := strings.Index(rendered, "## "+SectionLiveSchema)
	if schemaAt < 0 || liveAt < 0 || schemaAt > liveAt {
		t.Fatalf("section order wrong:\n%s", rendered)
	}
	if strings.Contains(rendered, SectionBusinessRules) || strings.Contains(rendered, SectionLearnings) {
		t.Fatalf("empty sections rendered:\n%s", rendered)
	}
}

func TestContextSectionLookup(t *testing.T) {
	t.Parallel()

	doc := &Context{}
	doc.add(SectionSchema, "body text")

	if got := doc.Section(SectionSchema); got != "body text" {
		t.Fatalf("Section = %q", got)
	}
	if got := doc.Section(SectionLearnings); got != "" {
		t.Fatalf("missing section = %q, want empty", got)
	}
}

func TestContextEmpty(t *testing.T) {
	t.Parallel()

	doc := &Context{}
	if !doc.Empty() {
		t.Fatal("fresh context not empty")
	}
	if doc.Render() != "" {
		t.Fatalf("empty context rendered %q", doc.Render())
	}
}
