package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
	"github.com/askdb-ai/askdb/internal/domain/schema"
	"github.com/askdb-ai/askdb/internal/search"
)

const defaultTopK = 5

// BuilderConfig carries the per-installation retrieval settings.
type BuilderConfig struct {
	// LearningEnabled gates the learnings section entirely.
	LearningEnabled bool
	// TopK bounds the query-pattern and learning hits per question.
	TopK int
	// CustomIndexes names extra search indexes appended after the built-in
	// sections.
	CustomIndexes []string
}

// Builder assembles the grounding context for one question.
type Builder struct {
	store        *knowledge.Store
	searcher     search.Driver
	introspector *schema.Introspector
	cfg          BuilderConfig
	logger       *slog.Logger
}

// NewBuilder creates a Builder. The introspector may be nil when no live data
// connection is configured; the live-schema section is skipped then.
func NewBuilder(store *knowledge.Store, searcher search.Driver, introspector *schema.Introspector, cfg BuilderConfig, logger *slog.Logger) *Builder {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if searcher == nil {
		searcher = search.NewNullDriver()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, searcher: searcher, introspector: introspector, cfg: cfg, logger: logger}
}

// Build assembles the full context for a question. It never fails: a source
// error is logged and its section omitted, so the worst case is an empty
// context.
func (b *Builder) Build(ctx context.Context, question, connection string) *Context {
	doc := &Context{}
	doc.add(SectionSchema, b.schemaSection(ctx, connection))
	doc.add(SectionBusinessRules, b.businessRulesSection(ctx))
	doc.add(SectionQueryPatterns, b.queryPatternsSection(ctx, question))
	if b.cfg.LearningEnabled {
		doc.add(SectionLearnings, b.learningsSection(ctx, question))
	}
	doc.add(SectionLiveSchema, b.liveSchemaSection(ctx, question))
	doc.add(SectionCustomIndexes, b.customIndexesSection(ctx, question))
	return doc
}

// BuildMinimal assembles static metadata only, skipping every search call.
func (b *Builder) BuildMinimal(ctx context.Context, connection string) *Context {
	doc := &Context{}
	doc.add(SectionSchema, b.schemaSection(ctx, connection))
	doc.add(SectionBusinessRules, b.businessRulesSection(ctx))
	return doc
}

// BuildRuntimeOnly assembles live introspection only, for callers with no
// curated metadata or search backend.
func (b *Builder) BuildRuntimeOnly(ctx context.Context, question string) *Context {
	doc := &Context{}
	doc.add(SectionLiveSchema, b.liveSchemaSection(ctx, question))
	return doc
}

// ─── sections ────────────────────────────────────────────────────────────────

func (b *Builder) schemaSection(ctx context.Context, connection string) string {
	tables, err := b.store.TableMetadataFor(ctx, connection)
	if err != nil {
		b.logger.Warn("context: load table metadata", "connection", connection, "error", err)
		return ""
	}
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, t.Format())
	}
	return strings.Join(parts, "\n")
}

func (b *Builder) businessRulesSection(ctx context.Context) string {
	rules, err := b.store.BusinessRules(ctx)
	if err != nil {
		b.logger.Warn("context: load business rules", "error", err)
		return ""
	}
	var sb strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Name, r.RuleType, r.Definition)
	}
	return sb.String()
}

func (b *Builder) queryPatternsSection(ctx context.Context, question string) string {
	results, err := b.searcher.Search(ctx, question, knowledge.IndexQueryPatterns, b.cfg.TopK)
	if err != nil {
		b.logger.Warn("context: search query patterns", "error", err)
		return ""
	}
	var sb strings.Builder
	for _, res := range results {
		p, ok := res.Record.(*knowledge.QueryPattern)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "Question: %s\nSQL: %s\n", p.Question, p.SQL)
		if p.Summary != "" {
			fmt.Fprintf(&sb, "Notes: %s\n", p.Summary)
		}
	}
	return sb.String()
}

func (b *Builder) learningsSection(ctx context.Context, question string) string {
	results, err := b.searcher.Search(ctx, question, knowledge.IndexLearnings, b.cfg.TopK)
	if err != nil {
		b.logger.Warn("context: search learnings", "error", err)
		return ""
	}
	var sb strings.Builder
	for _, res := range results {
		l, ok := res.Record.(*knowledge.Learning)
		if !ok {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "- %s: %s\n", l.Title, l.Description)
		if l.SQL != "" {
			fmt.Fprintf(&sb, "  SQL: %s\n", l.SQL)
		}
	}
	return sb.String()
}

// liveSchemaSection introspects only the tables the question appears to
// reference. The match is a heuristic, not a guarantee; a miss just means a
// smaller context.
func (b *Builder) liveSchemaSection(ctx context.Context, question string) string {
	if b.introspector == nil {
		return ""
	}
	tables, err := b.introspector.Tables(ctx)
	if err != nil {
		b.logger.Warn("context: list tables", "error", err)
		return ""
	}
	matched := schema.MatchTableNames(question, tables)
	if len(matched) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matched))
	for _, name := range matched {
		ts, descErr := b.introspector.Describe(ctx, name, false)
		if descErr != nil {
			b.logger.Warn("context: describe table", "table", name, "error", descErr)
			continue
		}
		parts = append(parts, schema.Format(ts))
	}
	return strings.Join(parts, "\n")
}

func (b *Builder) customIndexesSection(ctx context.Context, question string) string {
	if len(b.cfg.CustomIndexes) == 0 {
		return ""
	}
	results, err := b.searcher.SearchMultiple(ctx, question, b.cfg.CustomIndexes, b.cfg.TopK)
	if err != nil {
		b.logger.Warn("context: search custom indexes", "error", err)
		return ""
	}
	var sb strings.Builder
	for _, res := range results {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(renderRecord(res.Record))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderRecord(record any) string {
	switch r := record.(type) {
	case *knowledge.Learning:
		return r.SearchText()
	case *knowledge.QueryPattern:
		return r.SearchText()
	case fmt.Stringer:
		return r.String()
	default:
		return fmt.Sprintf("%v", record)
	}
}
