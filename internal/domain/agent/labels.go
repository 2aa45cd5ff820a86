package agent

// toolLabels maps tool names to the short progress notices shown in the
// streaming UI while a tool runs.
var toolLabels = map[string]string{
	"run_sql":              "Running SQL query",
	"introspect_schema":    "Inspecting database schema",
	"search_knowledge":     "Searching saved knowledge",
	"save_learning":        "Saving a learning",
	"save_validated_query": "Saving a validated query",
}

// toolLabel returns a human-readable progress label for a tool name.
func toolLabel(name string) string {
	if label, ok := toolLabels[name]; ok {
		return label
	}
	return "Running " + name
}
