package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncMode controls whether extracted rows are committed immediately or staged
type SyncMode string

const (
	SyncModeManual SyncMode = "manual"
	SyncModeAuto   SyncMode = "auto"
)

// ScheduleType maps to a cron expression on the scheduler
type ScheduleType string

const (
	ScheduleTypeManual ScheduleType = "manual"
	ScheduleTypeHourly ScheduleType = "hourly"
	ScheduleTypeDaily  ScheduleType = "daily"
	ScheduleTypeWeekly ScheduleType = "weekly"
	ScheduleTypeCron   ScheduleType = "cron"
)

// AssignmentStatus is the operator-facing lifecycle of an assignment
type AssignmentStatus string

const (
	AssignmentStatusDraft   AssignmentStatus = "draft"
	AssignmentStatusTesting AssignmentStatus = "testing"
	AssignmentStatusActive  AssignmentStatus = "active"
	AssignmentStatusPaused  AssignmentStatus = "paused"
	AssignmentStatusError   AssignmentStatus = "error"
)

// ExtractionMethod selects selector rules or LLM structured capture
type ExtractionMethod string

const (
	ExtractionMethodSelector ExtractionMethod = "selector"
	ExtractionMethodLLM      ExtractionMethod = "llm"
)

// Assignment binds a web source to a data source and target table, with
// either selector rules or an LLM capture config and an optional schedule.
// An assignment exclusively owns its rules, capture config and jobs.
type Assignment struct {
	ID               string           `json:"id" badgerhold:"key"`
	Name             string           `json:"name" validate:"required"`
	DataSourceID     string           `json:"data_source_id" validate:"required"`
	WebSourceID      string           `json:"web_source_id" validate:"required"`
	StartURL         string           `json:"start_url,omitempty"`
	TargetSchema     string           `json:"target_schema"`
	TargetTable      string           `json:"target_table" validate:"required"`
	SyncMode         SyncMode         `json:"sync_mode" validate:"oneof=manual auto"`
	ScheduleType     ScheduleType     `json:"schedule_type" validate:"oneof=manual hourly daily weekly cron"`
	CronExpression   string           `json:"cron_expression,omitempty"`
	Status           AssignmentStatus `json:"status"`
	ExtractionMethod ExtractionMethod `json:"extraction_method" validate:"oneof=selector llm"`
	LLMCaptureConfig string           `json:"llm_capture_config,omitempty"` // serialized LLMCaptureConfig
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// GetCaptureConfig decodes the stored LLM capture config.
// Returns nil when the assignment has none.
func (a *Assignment) GetCaptureConfig() (*LLMCaptureConfig, error) {
	if a.LLMCaptureConfig == "" {
		return nil, nil
	}
	var cfg LLMCaptureConfig
	if err := json.Unmarshal([]byte(a.LLMCaptureConfig), &cfg); err != nil {
		return nil, fmt.Errorf("invalid llm capture config: %w", err)
	}
	return &cfg, nil
}

// SetCaptureConfig stores the capture config as JSON
func (a *Assignment) SetCaptureConfig(cfg *LLMCaptureConfig) error {
	if cfg == nil {
		a.LLMCaptureConfig = ""
		return nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	a.LLMCaptureConfig = string(data)
	return nil
}

// CronSpec derives the cron expression for the assignment's schedule type.
// Returns an empty string for manual scheduling.
func (a *Assignment) CronSpec() string {
	switch a.ScheduleType {
	case ScheduleTypeHourly:
		return "0 * * * *"
	case ScheduleTypeDaily:
		return "0 0 * * *"
	case ScheduleTypeWeekly:
		return "0 0 * * 0"
	case ScheduleTypeCron:
		return a.CronExpression
	default:
		return ""
	}
}

// QualifiedTable returns the schema-qualified target table name
func (a *Assignment) QualifiedTable() string {
	if a.TargetSchema != "" {
		return a.TargetSchema + "." + a.TargetTable
	}
	return a.TargetTable
}
