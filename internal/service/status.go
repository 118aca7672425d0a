package service

import "strings"

// Status is the lifecycle state of an order
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// AllStatuses lists the canonical statuses in display order
var AllStatuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// ParseStatus accepts exactly one of the canonical status strings. Any
// status may move to any other; only line-item edits are gated.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", missingFields("status")
	}
	for _, st := range AllStatuses {
		if s == string(st) {
			return st, nil
		}
	}
	names := make([]string, len(AllStatuses))
	for i, st := range AllStatuses {
		names[i] = string(st)
	}
	return "", invalidInput("Invalid status. Allowed: %s", strings.Join(names, ", "))
}

// AllowsEdit reports whether an order in this status may have its number
// and line items changed
func (s Status) AllowsEdit() bool {
	return s != StatusCompleted
}
