// Package deps resolves the external tools the processing pipeline shells
// out to. Requirements come from the configured command templates, so the
// daemon and the CLI status view share one definition of "what must be on
// PATH".
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names one external tool and the command that must resolve.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of resolving one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Check resolves the requirement against PATH. Available tools report their
// resolved location; unavailable ones say why.
func (r Requirement) Check() Status {
	status := Status{
		Name:        r.Name,
		Command:     strings.TrimSpace(r.Command),
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("%q not found on PATH", status.Command)
		return status
	}
	status.Available = true
	status.Detail = resolved
	return status
}

// CheckAll resolves every requirement in order.
func CheckAll(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, req.Check())
	}
	return results
}

// MissingRequired returns the names of non-optional tools that failed to
// resolve, for preflight summaries.
func MissingRequired(statuses []Status) []string {
	var names []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			names = append(names, status.Name)
		}
	}
	return names
}
