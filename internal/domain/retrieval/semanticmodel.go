package retrieval

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/askdb-ai/askdb/internal/domain/knowledge"
)

// SemanticModel is the curated YAML description of a data connection: table
// purposes, columns, relationships and business rules. It bootstraps the
// knowledge store so a fresh install has grounding context before anyone has
// saved a learning.
type SemanticModel struct {
	Connection string          `yaml:"connection"`
	Tables     []TableModel    `yaml:"tables"`
	Rules      []BusinessModel `yaml:"rules"`
}

// TableModel is one curated table description.
type TableModel struct {
	Name             string                       `yaml:"name"`
	Description      string                       `yaml:"description"`
	Columns          []knowledge.ColumnDescriptor `yaml:"columns"`
	Relationships    []knowledge.Relationship     `yaml:"relationships"`
	DataQualityNotes []string                     `yaml:"data_quality_notes"`
}

// BusinessModel is one curated metric, rule or gotcha.
type BusinessModel struct {
	Name       string `yaml:"name"`
	Definition string `yaml:"definition"`
	Type       string `yaml:"type"`
}

// LoadSemanticModel reads and parses a semantic model YAML file.
func LoadSemanticModel(path string) (*SemanticModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("retrieval: read semantic model: %w", err)
	}
	var model SemanticModel
	if err := yaml.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("retrieval: parse semantic model: %w", err)
	}
	if model.Connection == "" {
		model.Connection = "default"
	}
	return &model, nil
}

// ImportSemanticModel upserts the model's tables and rules into the store.
// Table metadata replaces any previous version for the same (connection,
// table); rules are matched by name so re-importing the same file is
// idempotent.
func ImportSemanticModel(ctx context.Context, store *knowledge.Store, model *SemanticModel) error {
	for _, t := range model.Tables {
		if t.Name == "" {
			return fmt.Errorf("retrieval: semantic model table without a name")
		}
		err := store.UpsertTableMetadata(ctx, &knowledge.TableMetadata{
			Connection:       model.Connection,
			TableName:        t.Name,
			Description:      t.Description,
			Columns:          t.Columns,
			Relationships:    t.Relationships,
			DataQualityNotes: t.DataQualityNotes,
		})
		if err != nil {
			return err
		}
	}
	if len(model.Rules) == 0 {
		return nil
	}

	existing, err := store.BusinessRules(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, r := range existing {
		known[r.Name] = true
	}
	for _, r := range model.Rules {
		if r.Name == "" || known[r.Name] {
			continue
		}
		rule := &knowledge.BusinessRule{
			Name:       r.Name,
			Definition: r.Definition,
			RuleType:   ruleType(r.Type),
		}
		if err := store.CreateBusinessRule(ctx, rule); err != nil {
			return err
		}
	}
	return nil
}

func ruleType(s string) knowledge.BusinessRuleType {
	switch knowledge.BusinessRuleType(s) {
	case knowledge.RuleTypeMetric, knowledge.RuleTypeGotcha:
		return knowledge.BusinessRuleType(s)
	default:
		return knowledge.RuleTypeRule
	}
}
