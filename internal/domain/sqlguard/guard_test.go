package sqlguard

import (
	"strings"
	"testing"
)

func newDefaultGuard() *Guard {
	return New(
		[]string{"SELECT", "WITH"},
		[]string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE"},
	)
}

// ============================================================================
// Statement prefix tests
// ============================================================================

func TestGuard_Validate_AllowsSelectAndWith(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	queries := []string{
		"SELECT * FROM race_wins",
		"select count(*) from race_wins",
		"  WITH recent AS (SELECT * FROM race_wins) SELECT * FROM recent",
		"with t as (select 1) select * from t",
	}
	for _, q := range queries {
		if err := g.Validate(q); err != nil {
			t.Errorf("Validate(%q): unexpected error: %v", q, err)
		}
	}
}

func TestGuard_Validate_RejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	for _, q := range []string{"", "   ", "\n\t"} {
		if err := g.Validate(q); err == nil {
			t.Errorf("Validate(%q): expected error for empty query", q)
		}
	}
}

func TestGuard_Validate_RejectsDisallowedPrefix(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	err := g.Validate("DROP TABLE users")
	if err == nil {
		t.Fatal("expected rejection for DROP TABLE")
	}
	if !strings.Contains(err.Error(), "SELECT") || !strings.Contains(err.Error(), "WITH") {
		t.Errorf("expected error to name allowed statements, got %q", err.Error())
	}
}

// ============================================================================
// Forbidden keyword tests
// ============================================================================

func TestGuard_Validate_ForbiddenKeywordWordBoundary(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()

	// Identifiers that merely contain a forbidden keyword are fine.
	if err := g.Validate("SELECT update_time FROM race_wins"); err != nil {
		t.Errorf("expected update_time column to pass, got %v", err)
	}
	if err := g.Validate("SELECT created_at, deleted_flag FROM t"); err != nil {
		t.Errorf("expected keyword-containing identifiers to pass, got %v", err)
	}

	// A bare forbidden token is rejected, whatever its case.
	for _, q := range []string{
		"SELECT * FROM t; UPDATE t SET x = 1",
		"SELECT * FROM t WHERE EXISTS (SELECT 1) AND UpDaTe",
	} {
		err := g.Validate(q)
		if err == nil {
			t.Errorf("Validate(%q): expected forbidden keyword rejection", q)
			continue
		}
		if !strings.Contains(strings.ToUpper(err.Error()), "UPDATE") {
			t.Errorf("Validate(%q): expected error to name UPDATE, got %q", q, err.Error())
		}
	}
}

// ============================================================================
// Multi-statement tests
// ============================================================================

func TestGuard_Validate_SemicolonInsideLiteralIsNotASeparator(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	if err := g.Validate(`SELECT * FROM t WHERE name = 'a;b'`); err != nil {
		t.Errorf("expected literal semicolon to pass, got %v", err)
	}
	if err := g.Validate(`SELECT * FROM t WHERE name = "x;y" OR code = 'p;q';`); err != nil {
		t.Errorf("expected single statement with literal semicolons to pass, got %v", err)
	}
}

func TestGuard_Validate_RejectsMultipleStatements(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	for _, q := range []string{
		"SELECT 1; SELECT 2",
		"SELECT 1; SELECT 2;",
		"SELECT 1;;",
		"SELECT * FROM t WHERE name = 'a;b'; SELECT 2",
	} {
		err := g.Validate(q)
		if err == nil {
			t.Errorf("Validate(%q): expected rejection for multiple statements", q)
			continue
		}
		if !strings.Contains(err.Error(), "multiple statements") {
			t.Errorf("Validate(%q): expected multiple-statements message, got %q", q, err.Error())
		}
	}
}

func TestGuard_Validate_TrailingSemicolonIsATerminator(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	for _, q := range []string{
		"SELECT 1;",
		"SELECT * FROM t WHERE season = 2019;  ",
	} {
		if err := g.Validate(q); err != nil {
			t.Errorf("Validate(%q): expected single terminated statement to pass, got %v", q, err)
		}
	}
}

func TestGuard_Validate_EscapedQuoteInsideLiteral(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	if err := g.Validate(`SELECT * FROM t WHERE name = 'it''s; fine'`); err != nil {
		t.Errorf("expected doubled-quote escape to be honored, got %v", err)
	}
}

// ============================================================================
// Idempotence
// ============================================================================

func TestGuard_Validate_Idempotent(t *testing.T) {
	t.Parallel()

	g := newDefaultGuard()
	q := "SELECT COUNT(DISTINCT venue) FROM race_wins WHERE strftime('%Y', race_date) = '2019'"
	for i := 0; i < 3; i++ {
		if err := g.Validate(q); err != nil {
			t.Fatalf("pass %d: expected accept, got %v", i, err)
		}
	}
}

// ============================================================================
// stripQuotedLiterals
// ============================================================================

func TestStripQuotedLiterals(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{`SELECT 'a;b'`, `SELECT `},
		{`SELECT "x" FROM t`, `SELECT  FROM t`},
		{`no quotes at all`, `no quotes at all`},
		{`'it''s'`, ``},
	}
	for _, tc := range cases {
		if got := stripQuotedLiterals(tc.in); got != tc.want {
			t.Errorf("stripQuotedLiterals(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
