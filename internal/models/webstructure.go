package models

// DetectedField is one field probe hit inside a repeating element
type DetectedField struct {
	Name        string `json:"name"`
	Selector    string `json:"selector"`
	Attribute   string `json:"attribute"`
	SampleValue string `json:"sample_value,omitempty"`
	DataType    string `json:"data_type"`
}

// RepeatingElement is a candidate row container found by structure analysis,
// ranked by count x field count
type RepeatingElement struct {
	Selector   string          `json:"selector"`
	Count      int             `json:"count"`
	SampleHTML string          `json:"sample_html,omitempty"`
	Fields     []DetectedField `json:"fields"`
}

// DetectedForm summarizes a form found on the page
type DetectedForm struct {
	Action string   `json:"action"`
	Method string   `json:"method"`
	Inputs []string `json:"inputs"`
}

// WebsiteStructure is the output of scraper structure analysis
type WebsiteStructure struct {
	URL               string             `json:"url"`
	Title             string             `json:"title"`
	RepeatingElements []RepeatingElement `json:"repeating_elements"`
	Pagination        *PaginationConfig  `json:"pagination,omitempty"`
	Forms             []DetectedForm     `json:"forms,omitempty"`
	Links             []string           `json:"links,omitempty"`
}

// MappingSuggestion pairs a detected web field with a target-table column.
// Ephemeral: produced by the mapper, never persisted.
type MappingSuggestion struct {
	Confidence      float64       `json:"confidence"`
	WebField        string        `json:"web_field"`
	DBColumn        string        `json:"db_column"`
	TableName       string        `json:"table_name"`
	Selector        string        `json:"selector"`
	Attribute       string        `json:"attribute,omitempty"`
	TransformType   TransformType `json:"transform_type,omitempty"`
	TransformConfig string        `json:"transform_config,omitempty"`
	Reasoning       string        `json:"reasoning,omitempty"`
}

// SchemaAwareAnalysis is the AnalysisAPI response for AnalyzeWithSchema
type SchemaAwareAnalysis struct {
	ProposedMappings []MappingSuggestion `json:"proposed_mappings"`
	Summary          MappingSummary      `json:"summary"`
}

// MappingSummary aggregates a schema-aware analysis
type MappingSummary struct {
	TotalColumns      int     `json:"total_columns"`
	MappedColumns     int     `json:"mapped_columns"`
	UnmappedColumns   int     `json:"unmapped_columns"`
	AverageConfidence float64 `json:"average_confidence"`
}
