// Package retrieval assembles the grounding context document shown to the
// model before each run: curated schema descriptions, business rules,
// relevant query patterns and learnings, and live schema lookups. Every
// source is independently optional — a failing source drops its section,
// never the whole build.
package retrieval

import "strings"

// Section titles, in the fixed order they appear in the rendered context.
const (
	SectionSchema        = "Database Schema"
	SectionBusinessRules = "Business Rules"
	SectionQueryPatterns = "Example Query Patterns"
	SectionLearnings     = "Learnings"
	SectionLiveSchema    = "Live Schema"
	SectionCustomIndexes = "Additional Knowledge"
)

// Section is one labeled block of the context document.
type Section struct {
	Title string
	Body  string
}

// Context is the assembled grounding payload for one question. Built fresh
// per question; retrieval is query-dependent so it is never cached.
type Context struct {
	Sections []Section
}

// add appends a section, dropping empty bodies.
func (c *Context) add(title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	c.Sections = append(c.Sections, Section{Title: title, Body: body})
}

// Empty reports whether no source produced anything.
func (c *Context) Empty() bool {
	return len(c.Sections) == 0
}

// Render concatenates the sections under labeled headings. Sections keep the
// order they were added in, so the model sees a consistent structure.
func (c *Context) Render() string {
	var b strings.Builder
	for i, s := range c.Sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(s.Title)
		b.WriteString("\n\n")
		b.WriteString(s.Body)
	}
	return b.String()
}

// Section returns the body of the named section, or empty.
func (c *Context) Section(title string) string {
	for _, s := range c.Sections {
		if s.Title == title {
			return s.Body
		}
	}
	return ""
}
