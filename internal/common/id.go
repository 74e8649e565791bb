package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique extraction job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewAssignmentID generates a unique assignment ID with the "asg_" prefix
func NewAssignmentID() string {
	return "asg_" + uuid.New().String()
}

// NewRuleID generates a unique extraction rule ID with the "rule_" prefix
func NewRuleID() string {
	return "rule_" + uuid.New().String()
}

// NewSourceID generates a unique source ID with the "src_" prefix
func NewSourceID() string {
	return "src_" + uuid.New().String()
}
