package knowledge

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/askdb-ai/askdb/internal/infra/eventbus"
)

// ============================================================================
// CategorizeError tests
// ============================================================================

func TestCategorizeError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		errText string
		want    LearningCategory
	}{
		{"no such column: race_date", CategorySchemaFix},
		{"Unknown column 'venue' in 'field list'", CategorySchemaFix},
		{"table drivers does not exist", CategorySchemaFix},
		{"cannot cast type text to integer", CategoryTypeError},
		{"operand type clash: varchar is incompatible with int", CategoryTypeError},
		{"syntax error near 'GROOP'", CategoryQueryPattern},
		{"column must appear in the GROUP BY clause", CategoryQueryPattern},
		{"NOT NULL constraint failed: race_wins.venue", CategoryDataQuality},
		{"division by zero", CategoryDataQuality},
		{"permission denied for relation payroll", CategoryBusinessLogic},
	}
	for _, tc := range cases {
		if got := CategorizeError(tc.errText); got != tc.want {
			t.Errorf("CategorizeError(%q) = %q, want %q", tc.errText, got, tc.want)
		}
	}
}

// ============================================================================
// DeriveTitle tests
// ============================================================================

func TestDeriveTitle_StripsVendorCodes(t *testing.T) {
	t.Parallel()

	title := DeriveTitle("SQLSTATE[42S22]: Column not found: 1054 Unknown column 'venue'")
	if strings.Contains(title, "SQLSTATE") || strings.Contains(title, "[42S22]") {
		t.Errorf("expected vendor code stripped, got %q", title)
	}
	if !strings.Contains(title, "Column not found") {
		t.Errorf("expected message preserved, got %q", title)
	}
}

func TestDeriveTitle_TruncatesLongMessages(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 300)
	title := DeriveTitle(long)
	if len(title) > maxTitleLength {
		t.Errorf("expected title capped at %d chars, got %d", maxTitleLength, len(title))
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("expected ellipsis on truncated title, got %q", title)
	}
}

func TestDeriveTitle_TruncatesOnRuneBoundaries(t *testing.T) {
	t.Parallel()

	title := DeriveTitle("la colonne «équipe» est introuvable " + strings.Repeat("é", 200))
	if !utf8.ValidString(title) {
		t.Errorf("expected valid UTF-8 title, got %q", title)
	}
	if n := utf8.RuneCountInString(title); n > maxTitleLength {
		t.Errorf("expected title capped at %d runes, got %d", maxTitleLength, n)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("expected ellipsis on truncated title, got %q", title)
	}
}

// ============================================================================
// ExtractTableNames tests
// ============================================================================

func TestExtractTableNames(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM race_wins", []string{"race_wins"}},
		{"SELECT * FROM race_wins JOIN drivers ON drivers.id = race_wins.driver_id", []string{"race_wins", "drivers"}},
		{"SELECT * FROM `race_wins` JOIN \"drivers\" ON 1=1", []string{"race_wins", "drivers"}},
		{"SELECT * FROM race_wins r JOIN race_wins r2 ON r.id = r2.id", []string{"race_wins"}},
		{"INSERT INTO learnings (id) VALUES (1)", []string{"learnings"}},
		{"SELECT 1", nil},
	}
	for _, tc := range cases {
		got := ExtractTableNames(tc.sql)
		if len(got) != len(tc.want) {
			t.Errorf("ExtractTableNames(%q) = %v, want %v", tc.sql, got, tc.want)
			continue
		}
		for i := range tc.want {
			if got[i] != tc.want[i] {
				t.Errorf("ExtractTableNames(%q) = %v, want %v", tc.sql, got, tc.want)
			}
		}
	}
}

// ============================================================================
// LearnFromError tests
// ============================================================================

func TestLearner_LearnFromError_PersistsLearning(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ln := NewLearner(store, true, nil)

	learning, err := ln.LearnFromError(context.Background(), SQLErrorEvent{
		SQL:      "SELECT venue FROM race_wins WHERE year = 2019",
		Error:    "no such column: year",
		Question: "How many races were there in 2019?",
	})
	if err != nil {
		t.Fatalf("LearnFromError failed: %v", err)
	}
	if learning == nil {
		t.Fatal("expected a learning")
	}
	if learning.Category != CategorySchemaFix {
		t.Errorf("expected schema_fix, got %q", learning.Category)
	}
	if !strings.Contains(learning.Description, "race_wins") {
		t.Errorf("expected referenced tables in description, got %q", learning.Description)
	}

	persisted, err := store.Learnings(context.Background(), 10)
	if err != nil || len(persisted) != 1 {
		t.Fatalf("expected 1 persisted learning, got %d (%v)", len(persisted), err)
	}
}

func TestLearner_Disabled_DropsEvents(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ln := NewLearner(store, false, nil)

	learning, err := ln.LearnFromError(context.Background(), SQLErrorEvent{SQL: "SELECT 1", Error: "boom"})
	if err != nil {
		t.Fatalf("expected nil error when disabled, got %v", err)
	}
	if learning != nil {
		t.Errorf("expected no learning when disabled, got %+v", learning)
	}
}

func TestLearner_Start_ConsumesBusEvents(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t, nil)
	ln := NewLearner(store, true, nil)

	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ln.Start(ctx, bus)

	// Give the subscriber a moment to register before publishing.
	time.Sleep(20 * time.Millisecond)
	bus.Publish(eventbus.TopicSQLError, SQLErrorEvent{
		SQL:      "SELECT * FROM race_wins",
		Error:    "no such table: race_wins",
		Question: "races?",
	})

	deadline := time.After(2 * time.Second)
	for {
		learnings, err := store.Learnings(context.Background(), 10)
		if err != nil {
			t.Fatalf("Learnings failed: %v", err)
		}
		if len(learnings) == 1 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the learner to persist the event")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
