package interfaces

import "context"

// Message is a provider-agnostic chat message
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ResponseFormat controls how the provider constrains its output
type ResponseFormat string

const (
	// ResponseFree places no constraint on the output
	ResponseFree ResponseFormat = "free"
	// ResponseJSONObject demands a JSON object without a fixed schema
	ResponseJSONObject ResponseFormat = "json_object"
	// ResponseJSONSchema demands output conforming to CompletionRequest.Schema
	ResponseJSONSchema ResponseFormat = "json_schema"
)

// CompletionRequest is a single LLM call
type CompletionRequest struct {
	Model       string
	Temperature float32
	Messages    []Message
	Format      ResponseFormat
	Schema      map[string]interface{} // required when Format is ResponseJSONSchema
}

// LLMClient is the only way the core speaks to an LLM provider
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
}
