package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fazmin/syncengine/internal/models"
)

const listHTML = `<html><body>
<div class="p"><span class="name">Widget</span><span class="price">$9.99</span></div>
<div class="p"><span class="name">Gadget</span><span class="price">$24.50</span></div>
<div class="p"><span class="name">Sprocket</span><span class="price">$3.00</span></div>
</body></html>`

func listRules() []*models.ExtractionRule {
	return []*models.ExtractionRule{
		{
			TargetColumn: "name",
			Selector:     ".p",
			SelectorType: models.SelectorTypeCSS,
			Attribute:    models.AttributeText,
			DataType:     models.RuleDataTypeString,
			IsActive:     true,
			SortOrder:    1,
		},
		{
			TargetColumn:    "price",
			Selector:        ".price",
			SelectorType:    models.SelectorTypeCSS,
			Attribute:       models.AttributeText,
			DataType:        models.RuleDataTypeNumber,
			TransformType:   models.TransformRegex,
			TransformConfig: `{"pattern":"\\$([0-9.]+)","group":1}`,
			IsActive:        true,
			SortOrder:       2,
		},
	}
}

func TestExtractRepeatingRows(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	rules := listRules()
	rules[0].Selector = ".p"
	rules = append(rules, &models.ExtractionRule{
		TargetColumn: "label",
		Selector:     ".name",
		SelectorType: models.SelectorTypeCSS,
		Attribute:    models.AttributeText,
		DataType:     models.RuleDataTypeString,
		IsActive:     true,
		SortOrder:    3,
	})

	rows, err := svc.Extract(listHTML, rules)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Widget", rows[0]["label"])
	assert.Equal(t, 9.99, rows[0]["price"])
	assert.Equal(t, "Gadget", rows[1]["label"])
	assert.Equal(t, 24.50, rows[1]["price"])
	assert.Equal(t, "Sprocket", rows[2]["label"])
	assert.Equal(t, 3.00, rows[2]["price"])
}

func TestExtractSingleContextIsWholeDocument(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	html := `<html><body><div class="only"><span class="name">Solo</span></div></body></html>`
	rules := []*models.ExtractionRule{
		{
			TargetColumn: "name",
			Selector:     ".name",
			SelectorType: models.SelectorTypeCSS,
			Attribute:    models.AttributeText,
			DataType:     models.RuleDataTypeString,
			IsActive:     true,
		},
	}

	rows, err := svc.Extract(html, rules)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Solo", rows[0]["name"])
}

func TestExtractAttributes(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	html := `<html><body>
	<div class="p"><a href="/items/1">One</a><img src="/1.png"></div>
	<div class="p"><a href="/items/2">Two</a><img src="/2.png"></div>
	</body></html>`

	rules := []*models.ExtractionRule{
		{TargetColumn: "anchor", Selector: ".p", SelectorType: models.SelectorTypeCSS, Attribute: models.AttributeText, DataType: models.RuleDataTypeString, IsActive: true},
		{TargetColumn: "url", Selector: "a", SelectorType: models.SelectorTypeCSS, Attribute: models.AttributeHref, DataType: models.RuleDataTypeString, IsActive: true},
		{TargetColumn: "image", Selector: "img", SelectorType: models.SelectorTypeCSS, Attribute: models.AttributeSrc, DataType: models.RuleDataTypeString, IsActive: true},
		{TargetColumn: "markup", Selector: "a", SelectorType: models.SelectorTypeCSS, Attribute: models.AttributeHTML, DataType: models.RuleDataTypeString, IsActive: true},
	}

	rows, err := svc.Extract(html, rules)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "/items/1", rows[0]["url"])
	assert.Equal(t, "/1.png", rows[0]["image"])
	assert.Equal(t, "One", rows[0]["markup"])
	assert.Equal(t, "/items/2", rows[1]["url"])
}

func TestExtractMissingValueUsesDefault(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	rules := append(listRules(), &models.ExtractionRule{
		TargetColumn: "stock",
		Selector:     ".stock",
		SelectorType: models.SelectorTypeCSS,
		Attribute:    models.AttributeText,
		DataType:     models.RuleDataTypeNumber,
		DefaultValue: "0",
		IsActive:     true,
	}, &models.ExtractionRule{
		TargetColumn: "rating",
		Selector:     ".rating",
		SelectorType: models.SelectorTypeCSS,
		Attribute:    models.AttributeText,
		DataType:     models.RuleDataTypeNumber,
		IsActive:     true,
	})

	rows, err := svc.Extract(listHTML, rules)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 0.0, rows[0]["stock"])
	assert.Nil(t, rows[0]["rating"])
}

func TestExtractSkipsInactiveRules(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	rules := listRules()
	rules[1].IsActive = false

	rows, err := svc.Extract(listHTML, rules)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	_, present := rows[0]["price"]
	assert.False(t, present)
}

func TestExtractNoActiveRules(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	_, err := svc.Extract(listHTML, []*models.ExtractionRule{{TargetColumn: "x", Selector: ".x", IsActive: false}})
	assert.Error(t, err)
}

func TestExtractXPathRule(t *testing.T) {
	svc := newTestService(t, testSource("http://example.test"))

	rules := []*models.ExtractionRule{
		{
			TargetColumn: "name",
			Selector:     "//div[@class='p']",
			SelectorType: models.SelectorTypeXPath,
			Attribute:    models.AttributeText,
			DataType:     models.RuleDataTypeString,
			IsActive:     true,
		},
		{
			TargetColumn: "label",
			Selector:     ".//span[@class='name']",
			SelectorType: models.SelectorTypeXPath,
			Attribute:    models.AttributeText,
			DataType:     models.RuleDataTypeString,
			IsActive:     true,
		},
	}

	rows, err := svc.Extract(listHTML, rules)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Widget", rows[0]["label"])
	assert.Equal(t, "Sprocket", rows[2]["label"])
}

func TestApplyRegexTransformReplacement(t *testing.T) {
	// explicit empty replacement strips every match
	rule := &models.ExtractionRule{
		TransformType:   models.TransformRegex,
		TransformConfig: `{"pattern":"[,\\s]","replacement":""}`,
	}
	out, err := applyTransform("1, 234, 567", rule)
	require.NoError(t, err)
	assert.Equal(t, "1234567", out)

	rule.TransformConfig = `{"pattern":"\\s+","replacement":"-"}`
	out, err = applyTransform("a b  c", rule)
	require.NoError(t, err)
	assert.Equal(t, "a-b-c", out)
}

func TestApplyRegexTransformNoMatch(t *testing.T) {
	rule := &models.ExtractionRule{
		TransformType:   models.TransformRegex,
		TransformConfig: `{"pattern":"\\$([0-9.]+)","group":1}`,
	}
	out, err := applyTransform("no price here", rule)
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestApplyTransformDate(t *testing.T) {
	rule := &models.ExtractionRule{TransformType: models.TransformDate}
	out, err := applyTransform("Jan 2, 2026", rule)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T00:00:00Z", out)
}

func TestApplyTransformNumber(t *testing.T) {
	rule := &models.ExtractionRule{TransformType: models.TransformNumber}
	out, err := applyTransform("$1,299.00 AUD", rule)
	require.NoError(t, err)
	assert.Equal(t, "1299.00", out)
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		dataType models.RuleDataType
		want     interface{}
	}{
		{"number", "42.5", models.RuleDataTypeNumber, 42.5},
		{"number invalid", "abc", models.RuleDataTypeNumber, nil},
		{"boolean yes", "yes", models.RuleDataTypeBoolean, true},
		{"boolean off", "off", models.RuleDataTypeBoolean, false},
		{"boolean invalid", "maybe", models.RuleDataTypeBoolean, nil},
		{"string", "hello", models.RuleDataTypeString, "hello"},
		{"json invalid", "{broken", models.RuleDataTypeJSON, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerce(tt.value, tt.dataType))
		})
	}
}

func TestCoerceDate(t *testing.T) {
	got := coerce("2026-08-24", models.RuleDataTypeDate)
	require.IsType(t, time.Time{}, got)
	assert.Equal(t, 2026, got.(time.Time).Year())

	assert.Nil(t, coerce("not a date", models.RuleDataTypeDate))
}

func TestCoerceJSON(t *testing.T) {
	got := coerce(`{"a":1}`, models.RuleDataTypeJSON)
	m, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1.0, m["a"])
}
