// api/schemas/errors.go
package schemas

import (
	"fmt"
	"strings"
)

// Typed errors for the orchestrator core. Consumers classify failures with
// errors.As instead of brittle string matching. ConfigError and the registry
// errors are fatal at startup; the remaining kinds are recovered per task and
// must never terminate the interactive session.

// ConfigError reports a malformed or unrecognized environment value. It always
// names the offending key so the operator can fix the environment without
// reading source.
type ConfigError struct {
	Key      string   // environment variable name
	Value    string   // raw offending value
	Reason   string   // what was expected
	Accepted []string // accepted values, when the key is an enumeration
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: invalid value %q for %s: %s", e.Value, e.Key, e.Reason)
	if len(e.Accepted) > 0 {
		msg += fmt.Sprintf(" (accepted: %s)", strings.Join(e.Accepted, ", "))
	}
	return msg
}

// NewConfigError creates a ConfigError for a non-enumerated key.
func NewConfigError(key, value, reason string) *ConfigError {
	return &ConfigError{Key: key, Value: value, Reason: reason}
}

// DuplicateActionError reports a second registration under an identifier that
// is already present in the action catalog.
type DuplicateActionError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action registry: duplicate action identifier %q", e.Name)
}

// UnknownActionError reports an exclusion-list entry that names no catalog
// action. Surfacing this at startup catches operator typos that silent
// ignoring would hide.
type UnknownActionError struct {
	Name    string
	Catalog []string
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("action registry: unknown action identifier %q in exclusion list (catalog: %s)",
		e.Name, strings.Join(e.Catalog, ", "))
}

// AgentExecutionError wraps a failure raised by the agent contract during a
// single task run. The session loop converts it into a failure Result and
// continues.
type AgentExecutionError struct {
	TaskSeq uint64
	Err     error
}

// Error implements the error interface.
func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("agent execution failed for task %d: %v", e.TaskSeq, e.Err)
}

// Unwrap provides the underlying error for errors.Is/As.
func (e *AgentExecutionError) Unwrap() error {
	return e.Err
}

// CoercionError reports a single raw record that could not be shaped into the
// active output format. It excludes only that record, never the batch.
type CoercionError struct {
	Format OutputFormat
	Index  int // position of the record within the raw batch
	Reason string
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("record %d does not fit output format %q: %s", e.Index, e.Format, e.Reason)
}

// PersistenceError reports a failed write into the output directory. Later
// tasks are independent, so the loop surfaces it and continues.
type PersistenceError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

// Unwrap provides the underlying error for errors.Is/As.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}
