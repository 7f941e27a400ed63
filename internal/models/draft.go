package models

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/casedeck/internal/apperr"
)

// Backend column limits.
const (
	MaxFeatureNameLen = 255
	MaxTitleLen       = 500
)

// Draft is the payload the client sends on create and update. Updates
// always carry every field.
type Draft struct {
	FeatureName    string   `json:"feature_name"`
	Title          string   `json:"title"`
	Steps          string   `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       Priority `json:"priority"`
	Status         Status   `json:"status"`
}

// NewDraft returns an empty draft carrying the backend defaults.
func NewDraft() Draft {
	return Draft{Priority: PriorityMedium, Status: StatusDraft}
}

// Normalize trims the free-text fields.
func (d Draft) Normalize() Draft {
	d.FeatureName = strings.TrimSpace(d.FeatureName)
	d.Title = strings.TrimSpace(d.Title)
	d.Steps = strings.TrimSpace(d.Steps)
	d.ExpectedResult = strings.TrimSpace(d.ExpectedResult)
	return d
}

// Validate checks the draft against the constraints the backend enforces.
// The returned error wraps apperr.ErrValidation.
func (d Draft) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.FeatureName, validation.Required, validation.RuneLength(1, MaxFeatureNameLen)),
		validation.Field(&d.Title, validation.Required, validation.RuneLength(1, MaxTitleLen)),
		validation.Field(&d.Steps, validation.Required),
		validation.Field(&d.ExpectedResult, validation.Required),
		validation.Field(&d.Priority, validation.Required, validation.In(PriorityLow, PriorityMedium, PriorityHigh)),
		validation.Field(&d.Status, validation.Required, validation.In(StatusDraft, StatusReady, StatusAutomated)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrValidation, err)
	}
	return nil
}
