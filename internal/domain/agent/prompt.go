package agent

import (
	"strings"

	"github.com/askdb-ai/askdb/internal/domain/retrieval"
)

const basePrompt = `You are a data analyst answering questions against a relational database.

Work iteratively:
1. Use introspect_schema to understand tables you are unsure about.
2. Use search_knowledge to find saved query patterns and learnings before writing SQL.
3. Write a single read-only SQL statement and execute it with run_sql.
4. If a query fails, read the error, adjust, and try a different query.
5. When the user confirms an answer, save it with save_validated_query.

Rules:
- Only SELECT and WITH statements are allowed. Never attempt to modify data.
- Base your answer on actual query results, never on assumptions.
- State the SQL you used in the final answer.`

// systemPrompt renders the system message for one run: the fixed instructions
// followed by the grounding context, when there is any.
func systemPrompt(doc *retrieval.Context) string {
	if doc == nil || doc.Empty() {
		return basePrompt
	}
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString("\n\n# Database Knowledge\n\n")
	b.WriteString(doc.Render())
	return b.String()
}
