// Package models defines the domain types for casedeck.
package models

import (
	"fmt"
	"slices"
)

// Priority is the urgency of a test case.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Status is the lifecycle stage of a test case.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusReady     Status = "Ready"
	StatusAutomated Status = "Automated"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusDraft, StatusReady, StatusAutomated}

// Choices returns values for an edit form. A current value the client does
// not know is appended so the form still shows what the backend holds;
// submitting it fails validation.
func Choices[T ~string](values []T, cur T) []T {
	if cur == "" || slices.Contains(values, cur) {
		return values
	}
	return append(slices.Clip(values), cur)
}

// Record is a test case as owned by the backend.
type Record struct {
	ID             int64     `json:"id"`
	FeatureName    string    `json:"feature_name"`
	Title          string    `json:"title"`
	Steps          string    `json:"steps"`
	ExpectedResult string    `json:"expected_result"`
	Priority       Priority  `json:"priority"`
	Status         Status    `json:"status"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at,omitzero"`
}

// Label returns the human-readable identifier shown on cards.
func (r Record) Label() string {
	return fmt.Sprintf("TC-%d", r.ID)
}

// Draft returns the client-editable fields of r.
func (r Record) Draft() Draft {
	return Draft{
		FeatureName:    r.FeatureName,
		Title:          r.Title,
		Steps:          r.Steps,
		ExpectedResult: r.ExpectedResult,
		Priority:       r.Priority,
		Status:         r.Status,
	}
}

// Filters narrows a list request. Empty fields are not sent.
type Filters struct {
	Search   string   `url:"search,omitempty" json:"search"`
	Priority Priority `url:"priority,omitempty" json:"priority"`
	Status   Status   `url:"status,omitempty" json:"status"`
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return f.Search == "" && f.Priority == "" && f.Status == ""
}
