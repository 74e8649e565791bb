package models

// LLMColumnMapping binds one target-table column to a field of the structured
// output items
type LLMColumnMapping struct {
	ColumnName  string `json:"column_name"`
	JSONField   string `json:"json_field"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"data_type"` // JSON type: string, number, boolean
	IsRequired  bool   `json:"is_required"`
}

// LLMCaptureConfig is a reusable structured-output prompt for an assignment:
// system prompt, the JSON schema the response must conform to, and the
// column mappings mirroring that schema.
type LLMCaptureConfig struct {
	SystemPrompt   string                 `json:"system_prompt"`
	JSONSchema     map[string]interface{} `json:"json_schema"`
	ColumnMappings []LLMColumnMapping     `json:"column_mappings"`
	Model          string                 `json:"model"`
	Temperature    float32                `json:"temperature" validate:"gte=0,lte=2"`
}

// ColumnAnalysis is the phase-1 verdict for one target-table column
type ColumnAnalysis struct {
	ColumnName     string  `json:"column_name"`
	DataType       string  `json:"data_type"`
	IsAvailable    bool    `json:"is_available"`
	Confidence     float64 `json:"confidence"`
	SampleValue    string  `json:"sample_value,omitempty"`
	Reasoning      string  `json:"reasoning"`
	ExtractionHint string  `json:"extraction_hint,omitempty"`
}

// LLMAnalysisResult is the full phase-1 output for an assignment
type LLMAnalysisResult struct {
	AssignmentID   string           `json:"assignment_id"`
	AssignmentName string           `json:"assignment_name"`
	TargetTable    string           `json:"target_table"`
	DataSourceName string           `json:"data_source_name"`
	Columns        []ColumnAnalysis `json:"columns"`
	Summary        AnalysisSummary  `json:"summary"`
}

// AnalysisSummary aggregates a column analysis
type AnalysisSummary struct {
	TotalColumns       int `json:"total_columns"`
	AvailableColumns   int `json:"available_columns"`
	UnavailableColumns int `json:"unavailable_columns"`
}
