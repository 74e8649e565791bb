package models

import "time"

// SelectorType identifies the selector language of an extraction rule
type SelectorType string

const (
	SelectorTypeCSS   SelectorType = "css"
	SelectorTypeXPath SelectorType = "xpath"
)

// TransformType is an optional post-extraction transform applied to raw values
type TransformType string

const (
	TransformNone   TransformType = ""
	TransformTrim   TransformType = "trim"
	TransformRegex  TransformType = "regex"
	TransformDate   TransformType = "date"
	TransformNumber TransformType = "number"
	TransformJSON   TransformType = "json"
)

// RuleDataType is the coercion target for an extracted value
type RuleDataType string

const (
	RuleDataTypeString  RuleDataType = "string"
	RuleDataTypeNumber  RuleDataType = "number"
	RuleDataTypeBoolean RuleDataType = "boolean"
	RuleDataTypeDate    RuleDataType = "date"
	RuleDataTypeJSON    RuleDataType = "json"
)

// Attribute constants for the common extraction pieces. Any other value is
// treated as a named HTML attribute.
const (
	AttributeText = "text"
	AttributeHTML = "html"
	AttributeHref = "href"
	AttributeSrc  = "src"
)

// ExtractionRule maps one selector extraction to one target table column.
// Rules are ordered by SortOrder; TargetColumn is unique among the active
// rules of an assignment.
type ExtractionRule struct {
	ID              string        `json:"id" badgerhold:"key"`
	AssignmentID    string        `json:"assignment_id" badgerhold:"index"`
	TargetColumn    string        `json:"target_column" validate:"required"`
	Selector        string        `json:"selector" validate:"required"`
	SelectorType    SelectorType  `json:"selector_type" validate:"oneof=css xpath"`
	Attribute       string        `json:"attribute"` // text, html, href, src, or any attr name
	TransformType   TransformType `json:"transform_type,omitempty"`
	TransformConfig string        `json:"transform_config,omitempty"` // JSON, shape depends on TransformType
	DefaultValue    string        `json:"default_value,omitempty"`
	DataType        RuleDataType  `json:"data_type" validate:"oneof=string number boolean date json"`
	IsRequired      bool          `json:"is_required"`
	ValidationRegex string        `json:"validation_regex,omitempty"`
	IsActive        bool          `json:"is_active"`
	SortOrder       int           `json:"sort_order"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// RegexTransformConfig is the decoded TransformConfig for TransformRegex.
// With a replacement present the transform does a replace-all; otherwise it
// returns the configured group (default 0) of the first match. Replacement is
// a pointer so an explicit empty string (strip matches) is distinguishable
// from an absent key.
type RegexTransformConfig struct {
	Pattern     string  `json:"pattern"`
	Flags       string  `json:"flags,omitempty"`
	Group       int     `json:"group,omitempty"`
	Replacement *string `json:"replacement,omitempty"`
}
