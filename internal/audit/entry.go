// Package audit persists a signed trail of sensitive tool executions.
//
// Every HIGH or CRITICAL tool invocation, successful or not, produces an Entry
// that is signed (HMAC-SHA256) and stored in SQLite. Writes go through an
// asynchronous buffered writer so a slow or failing store never holds up a
// conversation.
package audit

import "time"

// EntityTypeToolExecution is the entity type of every tool audit entry.
const EntityTypeToolExecution = "AI_TOOL_EXECUTION"

// RedactedArgs replaces the arguments of CRITICAL invocations.
const RedactedArgs = "[REDACTED]"

// Changes is the payload of a tool execution entry.
type Changes struct {
	ToolName    string    `json:"toolName"`
	Sensitivity string    `json:"sensitivity"`
	Success     bool      `json:"success"`
	Args        any       `json:"args"`
	Timestamp   time.Time `json:"timestamp"`
}

// Entry is one audit record.
type Entry struct {
	ID               string  `json:"id"`
	EntityType       string  `json:"entityType"`
	EntityID         string  `json:"entityId"`
	PerformedBy      string  `json:"performedBy"`
	PerformedByEmail string  `json:"performedByEmail"`
	PerformedByRole  string  `json:"performedByRole"`
	Changes          Changes `json:"changes"`
	Signature        string  `json:"signature"`
}
