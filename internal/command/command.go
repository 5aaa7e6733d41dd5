package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"podscrub/internal/store"
)

// Type discriminates the write-command envelope.
type Type string

const (
	TypeCreate      Type = "CREATE"
	TypeUpdate      Type = "UPDATE"
	TypeDelete      Type = "DELETE"
	TypeAction      Type = "ACTION"
	TypeTransaction Type = "TRANSACTION"
)

// ParseType validates and canonicalizes a command type string.
func ParseType(value string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(value)))
	switch t {
	case TypeCreate, TypeUpdate, TypeDelete, TypeAction, TypeTransaction:
		return t, nil
	default:
		return "", fmt.Errorf("unknown command type %q", value)
	}
}

// WriteCommand is the envelope carried from producers to the writer. Model
// is set only for CRUD types, Commands only for TRANSACTION. Reply, when
// non-nil, receives exactly one WriteResult.
type WriteCommand struct {
	ID       string
	Type     Type
	Model    string
	Data     map[string]any
	Commands []WriteCommand
	Reply    chan WriteResult
}

// ActionName returns the action a TypeAction command invokes, if any.
func (c WriteCommand) ActionName() string {
	if c.Type != TypeAction || c.Data == nil {
		return ""
	}
	name, _ := c.Data["action"].(string)
	return strings.TrimSpace(name)
}

// Describe renders a short human-readable label for logs and errors.
func (c WriteCommand) Describe() string {
	switch c.Type {
	case TypeAction:
		if name := c.ActionName(); name != "" {
			return string(c.Type) + " " + name
		}
		return string(c.Type)
	case TypeTransaction:
		return fmt.Sprintf("%s (%d commands)", c.Type, len(c.Commands))
	default:
		if c.Model != "" {
			return string(c.Type) + " " + c.Model
		}
		return string(c.Type)
	}
}

// WriteResult reports the outcome of one applied command.
type WriteResult struct {
	CommandID string
	Success   bool
	Data      map[string]any
	Error     string
}

// Err converts a failed result into an error; nil for successful results.
func (r WriteResult) Err() error {
	if r.Success {
		return nil
	}
	if strings.TrimSpace(r.Error) == "" {
		return errors.New("command failed")
	}
	return errors.New(r.Error)
}

// Succeeded builds a successful result for the given command id.
func Succeeded(commandID string, data map[string]any) WriteResult {
	return WriteResult{CommandID: commandID, Success: true, Data: data}
}

// Failed builds a failed result carrying the error text.
func Failed(commandID string, err error) WriteResult {
	res := WriteResult{CommandID: commandID}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Error = "unknown error"
	}
	return res
}

// Executor applies one command inside an open write transaction. Returned
// errors roll the transaction back and become failed results.
type Executor interface {
	Execute(ctx context.Context, tx *store.WriteTx, cmd WriteCommand) (map[string]any, error)
}
