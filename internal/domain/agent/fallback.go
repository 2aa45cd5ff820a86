package agent

import (
	"fmt"
	"sort"
	"strings"
)

const maxIterationsAnswer = "I was unable to complete the task within the maximum number of iterations."

// errMaxIterations is the error string reported alongside the degraded
// max-iterations answer.
const errMaxIterations = "Maximum iterations reached"

// degradedAnswer builds the best-effort answer for a run that could not
// finish normally, appending the last known SQL so the user still gets
// something auditable.
func degradedAnswer(base, lastSQL string) string {
	if lastSQL == "" {
		return base
	}
	return fmt.Sprintf("%s\n\nThe last query I ran was:\n%s", base, lastSQL)
}

// erroredAnswer is the user-facing text for a run-fatal gateway failure.
func erroredAnswer(err error, lastSQL string) string {
	return degradedAnswer(fmt.Sprintf("I ran into an error and could not finish: %v", err), lastSQL)
}

// maxFallbackRows bounds how many rows a synthesized answer lists.
const maxFallbackRows = 10

// resultsAnswer synthesizes a plain answer from the last run_sql result, for
// runs the model ends without any prose. Returns "" when there is nothing to
// report.
func resultsAnswer(lastSQL string, lastResults any) string {
	data, ok := lastResults.(map[string]any)
	if !ok {
		return ""
	}
	rows, _ := data["rows"].([]map[string]any)
	if len(rows) == 0 {
		if lastSQL == "" {
			return ""
		}
		return fmt.Sprintf("The query returned no rows.\n\nQuery:\n%s", lastSQL)
	}

	var b strings.Builder
	b.WriteString("Here is what the query returned:\n")
	for i, row := range rows {
		if i == maxFallbackRows {
			fmt.Fprintf(&b, "… and %d more rows\n", len(rows)-maxFallbackRows)
			break
		}
		b.WriteString("- " + renderRow(row) + "\n")
	}
	if lastSQL != "" {
		b.WriteString("\nQuery:\n" + lastSQL)
	}
	return b.String()
}

// renderRow prints one result row with stable column order.
func renderRow(row map[string]any) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, row[k]))
	}
	return strings.Join(parts, ", ")
}
