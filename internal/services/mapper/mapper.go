// -----------------------------------------------------------------------
// Schema-Aware Mapper - Detected web fields x target table columns
// -----------------------------------------------------------------------

package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

// fallbackConfidence is assigned to rule-based synonym matches
const fallbackConfidence = 0.6

// synonyms maps detected web field names to equivalent column names.
// Matching is bidirectional and case-insensitive.
var synonyms = map[string][]string{
	"title":       {"name", "heading", "subject", "label"},
	"name":        {"title", "full_name", "label"},
	"price":       {"cost", "amount", "value", "total"},
	"image":       {"img", "photo", "thumbnail", "picture", "image_url"},
	"link":        {"url", "href", "title"},
	"link_url":    {"url", "link", "href", "source_url"},
	"date":        {"created_at", "updated_at", "published_at", "posted_at"},
	"description": {"summary", "body", "details", "text", "content"},
	"heading":     {"title", "name"},
	"text":        {"description", "content", "body"},
}

// Mapper proposes extraction rules by matching detected web fields to
// target-table columns, LLM-first with a rule-based fallback.
type Mapper struct {
	client interfaces.LLMClient
	config common.LLMConfig
	logger arbor.ILogger
}

// New builds a mapper. The LLM client may be nil, which forces the
// rule-based path.
func New(client interfaces.LLMClient, config common.LLMConfig, logger arbor.ILogger) *Mapper {
	return &Mapper{
		client: client,
		config: config,
		logger: logger,
	}
}

// AnalyzeDatabase projects connector discovery into a mapper schema
func AnalyzeDatabase(dataSourceID string, dbType models.DBType, tables []models.TableInfo) *models.DatabaseSchema {
	return &models.DatabaseSchema{
		DataSourceID: dataSourceID,
		DBType:       dbType,
		Tables:       tables,
	}
}

// SuggestMappings matches the detected fields of a website structure
// against the schema's columns. With a target table the candidates are
// restricted to it. Results are sorted by descending confidence.
func (m *Mapper) SuggestMappings(ctx context.Context, schema *models.DatabaseSchema, structure *models.WebsiteStructure, targetTable string) []models.MappingSuggestion {
	fields := flattenFields(structure)
	if len(fields) == 0 {
		return nil
	}

	tables := schema.Tables
	if targetTable != "" {
		if t := schema.FindTable(targetTable); t != nil {
			tables = []models.TableInfo{*t}
		}
	}
	if len(tables) == 0 {
		return nil
	}

	suggestions := m.suggestWithLLM(ctx, tables, fields)
	if suggestions == nil {
		suggestions = suggestWithSynonyms(tables, fields)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

// flattenFields collects detected fields across all repeating elements,
// first occurrence of each name wins
func flattenFields(structure *models.WebsiteStructure) []models.DetectedField {
	if structure == nil {
		return nil
	}
	var fields []models.DetectedField
	seen := make(map[string]bool)
	for _, elem := range structure.RepeatingElements {
		for _, f := range elem.Fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				fields = append(fields, f)
			}
		}
	}
	return fields
}

// llmMapping is the per-mapping shape demanded from the LLM call
type llmMapping struct {
	WebFieldName    string  `json:"web_field_name"`
	TableName       string  `json:"table_name"`
	ColumnName      string  `json:"column_name"`
	Confidence      float64 `json:"confidence"`
	TransformType   string  `json:"transform_type"`
	TransformConfig string  `json:"transform_config"`
	Reasoning       string  `json:"reasoning"`
}

// suggestWithLLM asks the LLM to propose mappings. Returns nil when the
// call fails or yields nothing usable, which routes to the fallback.
func (m *Mapper) suggestWithLLM(ctx context.Context, tables []models.TableInfo, fields []models.DetectedField) []models.MappingSuggestion {
	if m.client == nil {
		return nil
	}

	var tableDesc strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&tableDesc, "Table %s:\n", t.QualifiedName())
		for _, c := range t.Columns {
			fmt.Fprintf(&tableDesc, "  - %s (%s)\n", c.Name, c.Type)
		}
	}

	var fieldDesc strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&fieldDesc, "- %s: selector %q, attribute %s, sample %q, type %s\n",
			f.Name, f.Selector, f.Attribute, f.SampleValue, f.DataType)
	}

	prompt := fmt.Sprintf(`Match the detected web page fields to database columns.

Database tables:
%s
Detected fields:
%s
Respond with a JSON object:
{"mappings":[{"web_field_name":"...","table_name":"...","column_name":"...","confidence":0.0,"transform_type":"","transform_config":"","reasoning":"..."}]}

Only map fields to columns that genuinely correspond. Confidence is 0.0 to 1.0. transform_type is one of "", "trim", "regex", "date", "number", "json".`,
		tableDesc.String(), fieldDesc.String())

	response, err := m.client.Complete(ctx, &interfaces.CompletionRequest{
		Model:       m.config.Model,
		Temperature: m.config.Temperature,
		Format:      interfaces.ResponseJSONObject,
		Messages: []interfaces.Message{
			{Role: "system", Content: "You map scraped web fields onto relational database columns."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		m.logger.Warn().Err(err).Msg("LLM mapping failed, using rule-based fallback")
		return nil
	}

	var parsed struct {
		Mappings []llmMapping `json:"mappings"`
	}
	if err := json.Unmarshal([]byte(stripFences(response)), &parsed); err != nil {
		m.logger.Warn().Err(err).Msg("Malformed LLM mapping response, using rule-based fallback")
		return nil
	}

	fieldsByName := make(map[string]models.DetectedField, len(fields))
	for _, f := range fields {
		fieldsByName[f.Name] = f
	}

	var suggestions []models.MappingSuggestion
	for _, mp := range parsed.Mappings {
		field, fieldOK := fieldsByName[mp.WebFieldName]
		table, column := findColumn(tables, mp.TableName, mp.ColumnName)
		if !fieldOK || column == nil {
			continue
		}

		transformType := models.TransformType(mp.TransformType)
		transformConfig := mp.TransformConfig
		if transformType == models.TransformNone {
			transformType, transformConfig = inferTransform(field, *column)
		}

		suggestions = append(suggestions, models.MappingSuggestion{
			Confidence:      clamp01(mp.Confidence),
			WebField:        field.Name,
			DBColumn:        column.Name,
			TableName:       table,
			Selector:        field.Selector,
			Attribute:       field.Attribute,
			TransformType:   transformType,
			TransformConfig: transformConfig,
			Reasoning:       mp.Reasoning,
		})
	}
	if len(suggestions) == 0 {
		return nil
	}
	return suggestions
}

// suggestWithSynonyms is the deterministic fallback matcher
func suggestWithSynonyms(tables []models.TableInfo, fields []models.DetectedField) []models.MappingSuggestion {
	var suggestions []models.MappingSuggestion
	for _, table := range tables {
		for _, field := range fields {
			for _, column := range table.Columns {
				if !namesMatch(field.Name, column.Name) {
					continue
				}
				transformType, transformConfig := inferTransform(field, column)
				suggestions = append(suggestions, models.MappingSuggestion{
					Confidence:      fallbackConfidence,
					WebField:        field.Name,
					DBColumn:        column.Name,
					TableName:       table.QualifiedName(),
					Selector:        field.Selector,
					Attribute:       field.Attribute,
					TransformType:   transformType,
					TransformConfig: transformConfig,
					Reasoning:       "Name match",
				})
				break
			}
		}
	}
	return suggestions
}

// namesMatch reports whether a web field name and a column name correspond,
// directly or through the synonym dictionary
func namesMatch(fieldName, columnName string) bool {
	f := strings.ToLower(fieldName)
	c := strings.ToLower(columnName)
	if f == c {
		return true
	}
	for _, s := range synonyms[f] {
		if s == c {
			return true
		}
	}
	for _, s := range synonyms[c] {
		if s == f {
			return true
		}
	}
	return false
}

// findColumn locates a named column, returning the owning table's
// qualified name
func findColumn(tables []models.TableInfo, tableName, columnName string) (string, *models.ColumnInfo) {
	for i := range tables {
		t := &tables[i]
		if tableName != "" && t.Table != tableName && t.QualifiedName() != tableName {
			continue
		}
		for j := range t.Columns {
			if strings.EqualFold(t.Columns[j].Name, columnName) {
				return t.QualifiedName(), &t.Columns[j]
			}
		}
	}
	return "", nil
}

// inferTransform picks a deterministic transform for a web string landing
// in a typed column
func inferTransform(field models.DetectedField, column models.ColumnInfo) (models.TransformType, string) {
	colType := strings.ToLower(column.Type)
	switch {
	case strings.Contains(colType, "int"),
		strings.Contains(colType, "float"),
		strings.Contains(colType, "decimal"),
		strings.Contains(colType, "numeric"),
		strings.Contains(colType, "real"),
		strings.Contains(colType, "double"),
		strings.Contains(colType, "money"):
		return models.TransformNumber, ""
	case strings.Contains(colType, "date"),
		strings.Contains(colType, "time"):
		return models.TransformDate, ""
	default:
		return models.TransformTrim, ""
	}
}

// MappingsToExtractionRules converts accepted suggestions into extraction
// rules, preserving order. IsRequired follows the column's nullability.
func MappingsToExtractionRules(suggestions []models.MappingSuggestion, assignmentID string, schema *models.DatabaseSchema) []*models.ExtractionRule {
	rules := make([]*models.ExtractionRule, 0, len(suggestions))
	for i, sug := range suggestions {
		attribute := sug.Attribute
		if attribute == "" {
			attribute = models.AttributeText
		}

		required := false
		dataType := models.RuleDataTypeString
		if table := schema.FindTable(sug.TableName); table != nil {
			for _, col := range table.Columns {
				if strings.EqualFold(col.Name, sug.DBColumn) {
					required = !col.Nullable
					dataType = ruleDataType(col.Type)
					break
				}
			}
		}

		rules = append(rules, &models.ExtractionRule{
			ID:              common.NewRuleID(),
			AssignmentID:    assignmentID,
			TargetColumn:    sug.DBColumn,
			Selector:        sug.Selector,
			SelectorType:    models.SelectorTypeCSS,
			Attribute:       attribute,
			TransformType:   sug.TransformType,
			TransformConfig: sug.TransformConfig,
			DataType:        dataType,
			IsRequired:      required,
			IsActive:        true,
			SortOrder:       i + 1,
		})
	}
	return rules
}

// ruleDataType maps a raw column type to a rule coercion target
func ruleDataType(columnType string) models.RuleDataType {
	t := strings.ToLower(columnType)
	switch {
	case strings.Contains(t, "bool"):
		return models.RuleDataTypeBoolean
	case strings.Contains(t, "int"),
		strings.Contains(t, "float"),
		strings.Contains(t, "decimal"),
		strings.Contains(t, "numeric"),
		strings.Contains(t, "real"),
		strings.Contains(t, "double"),
		strings.Contains(t, "money"):
		return models.RuleDataTypeNumber
	case strings.Contains(t, "date"),
		strings.Contains(t, "time"):
		return models.RuleDataTypeDate
	case strings.Contains(t, "json"):
		return models.RuleDataTypeJSON
	default:
		return models.RuleDataTypeString
	}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
