package mapper

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fazmin/syncengine/internal/common"
	"github.com/Fazmin/syncengine/internal/interfaces"
	"github.com/Fazmin/syncengine/internal/models"
)

type stubClient struct {
	response string
	err      error
}

func (c *stubClient) Complete(_ context.Context, _ *interfaces.CompletionRequest) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func productsSchema() *models.DatabaseSchema {
	return AnalyzeDatabase("src_db", models.DBTypePostgres, []models.TableInfo{
		{
			Schema: "public",
			Table:  "products",
			Columns: []models.ColumnInfo{
				{Name: "id", Type: "integer", IsPrimaryKey: true},
				{Name: "name", Type: "text", Nullable: false},
				{Name: "cost", Type: "numeric(10,2)", Nullable: true},
				{Name: "published_at", Type: "timestamp", Nullable: true},
			},
		},
		{
			Schema: "public",
			Table:  "orders",
			Columns: []models.ColumnInfo{
				{Name: "total", Type: "numeric", Nullable: true},
			},
		},
	})
}

func productStructure() *models.WebsiteStructure {
	return &models.WebsiteStructure{
		URL: "http://example.test/list",
		RepeatingElements: []models.RepeatingElement{
			{
				Selector: ".product",
				Count:    4,
				Fields: []models.DetectedField{
					{Name: "title", Selector: ".title", Attribute: "text", SampleValue: "Widget", DataType: "string"},
					{Name: "price", Selector: ".price", Attribute: "text", SampleValue: "$9.99", DataType: "string"},
					{Name: "date", Selector: ".date", Attribute: "text", SampleValue: "2026-08-01", DataType: "date"},
				},
			},
		},
	}
}

func TestAnalyzeDatabase(t *testing.T) {
	schema := productsSchema()
	assert.Equal(t, "src_db", schema.DataSourceID)
	assert.Equal(t, models.DBTypePostgres, schema.DBType)
	require.NotNil(t, schema.FindTable("products"))
	require.NotNil(t, schema.FindTable("public.products"))
	assert.Nil(t, schema.FindTable("missing"))
}

func TestSuggestMappingsLLMPath(t *testing.T) {
	client := &stubClient{response: `{"mappings":[
		{"web_field_name":"title","table_name":"products","column_name":"name","confidence":0.95,"reasoning":"Product names"},
		{"web_field_name":"price","table_name":"products","column_name":"cost","confidence":0.85,"reasoning":"Prices"},
		{"web_field_name":"ghost","table_name":"products","column_name":"name","confidence":0.9},
		{"web_field_name":"title","table_name":"products","column_name":"missing_col","confidence":0.9}
	]}`}
	m := New(client, common.NewDefaultConfig().LLM, common.GetLogger())

	suggestions := m.SuggestMappings(context.Background(), productsSchema(), productStructure(), "products")
	require.Len(t, suggestions, 2)

	// Sorted by descending confidence; unknown fields and columns dropped
	assert.Equal(t, "title", suggestions[0].WebField)
	assert.Equal(t, "name", suggestions[0].DBColumn)
	assert.Equal(t, 0.95, suggestions[0].Confidence)

	assert.Equal(t, "price", suggestions[1].WebField)
	assert.Equal(t, "cost", suggestions[1].DBColumn)
	assert.Equal(t, models.TransformNumber, suggestions[1].TransformType)
}

func TestSuggestMappingsFallbackOnLLMFailure(t *testing.T) {
	client := &stubClient{err: fmt.Errorf("provider unavailable")}
	m := New(client, common.NewDefaultConfig().LLM, common.GetLogger())

	suggestions := m.SuggestMappings(context.Background(), productsSchema(), productStructure(), "products")
	require.NotEmpty(t, suggestions)

	for _, s := range suggestions {
		assert.Equal(t, 0.6, s.Confidence)
	}

	byField := make(map[string]models.MappingSuggestion)
	for _, s := range suggestions {
		byField[s.WebField] = s
	}

	// title -> name and price -> cost via the synonym dictionary
	require.Contains(t, byField, "title")
	assert.Equal(t, "name", byField["title"].DBColumn)
	require.Contains(t, byField, "price")
	assert.Equal(t, "cost", byField["price"].DBColumn)
	assert.Equal(t, models.TransformNumber, byField["price"].TransformType)

	// date -> published_at with a date transform
	require.Contains(t, byField, "date")
	assert.Equal(t, "published_at", byField["date"].DBColumn)
	assert.Equal(t, models.TransformDate, byField["date"].TransformType)
}

func TestSuggestMappingsNilClientUsesFallback(t *testing.T) {
	m := New(nil, common.NewDefaultConfig().LLM, common.GetLogger())

	suggestions := m.SuggestMappings(context.Background(), productsSchema(), productStructure(), "products")
	assert.NotEmpty(t, suggestions)
}

func TestSuggestMappingsRestrictsToTargetTable(t *testing.T) {
	m := New(nil, common.NewDefaultConfig().LLM, common.GetLogger())

	suggestions := m.SuggestMappings(context.Background(), productsSchema(), productStructure(), "orders")
	for _, s := range suggestions {
		assert.Equal(t, "public.orders", s.TableName)
	}
}

func TestSuggestMappingsNoFields(t *testing.T) {
	m := New(nil, common.NewDefaultConfig().LLM, common.GetLogger())

	suggestions := m.SuggestMappings(context.Background(), productsSchema(), &models.WebsiteStructure{}, "")
	assert.Empty(t, suggestions)
}

func TestMappingsToExtractionRules(t *testing.T) {
	suggestions := []models.MappingSuggestion{
		{WebField: "title", DBColumn: "name", TableName: "public.products", Selector: ".title", Confidence: 0.9},
		{WebField: "price", DBColumn: "cost", TableName: "public.products", Selector: ".price", TransformType: models.TransformNumber, Confidence: 0.8},
	}

	rules := MappingsToExtractionRules(suggestions, "asg_1", productsSchema())
	require.Len(t, rules, 2)

	assert.Equal(t, "asg_1", rules[0].AssignmentID)
	assert.Equal(t, "name", rules[0].TargetColumn)
	assert.Equal(t, models.SelectorTypeCSS, rules[0].SelectorType)
	assert.Equal(t, models.AttributeText, rules[0].Attribute)
	assert.True(t, rules[0].IsRequired) // name is NOT NULL
	assert.Equal(t, models.RuleDataTypeString, rules[0].DataType)
	assert.Equal(t, 1, rules[0].SortOrder)
	assert.True(t, rules[0].IsActive)

	assert.Equal(t, "cost", rules[1].TargetColumn)
	assert.False(t, rules[1].IsRequired) // cost is nullable
	assert.Equal(t, models.RuleDataTypeNumber, rules[1].DataType)
	assert.Equal(t, 2, rules[1].SortOrder)
}

func TestInferTransform(t *testing.T) {
	field := models.DetectedField{Name: "x"}

	tt, _ := inferTransform(field, models.ColumnInfo{Type: "numeric(10,2)"})
	assert.Equal(t, models.TransformNumber, tt)

	tt, _ = inferTransform(field, models.ColumnInfo{Type: "timestamp with time zone"})
	assert.Equal(t, models.TransformDate, tt)

	tt, _ = inferTransform(field, models.ColumnInfo{Type: "text"})
	assert.Equal(t, models.TransformTrim, tt)
}
