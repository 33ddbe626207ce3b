// Package models defines the core data structures for case classification.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested item is not found
	ErrNotFound = errors.New("not found")
)

// FormField is a single label/value pair used to pre-populate a case form.
type FormField struct {
	FieldLabel string `json:"field_label" yaml:"field_label"`
	Value      string `json:"value" yaml:"value"`
}

// LookupDefault describes a lookup-field search performed by the form-filling
// collaborator: type SearchText into the field, pick the option containing
// OptionContains.
type LookupDefault struct {
	FieldLabel     string `json:"field_label" yaml:"field_label"`
	SearchText     string `json:"search_text" yaml:"search_text"`
	OptionContains string `json:"option_contains" yaml:"option_contains"`
}

// CaseInfo is the structured result of classifying an alert title.
type CaseInfo struct {
	// Subject is the rendered case subject line
	Subject string `json:"subject"`

	// FormDefaults are the base form defaults with the matched rule's
	// overrides merged in by field label
	FormDefaults []FormField `json:"form_defaults"`

	// AlertTypeName is the name of the rule that produced this result
	AlertTypeName string `json:"alert_type_name"`

	// CarrierModule is the carrier/module hint extracted by the rule,
	// empty when the rule extracted none
	CarrierModule string `json:"carrier_module,omitempty"`
}

// FormValue returns the value of the form default with the given label,
// or "" if the label is not present.
func (c *CaseInfo) FormValue(fieldLabel string) string {
	for _, f := range c.FormDefaults {
		if f.FieldLabel == fieldLabel {
			return f.Value
		}
	}
	return ""
}

// SetFormValue sets or appends a form default by field label.
func (c *CaseInfo) SetFormValue(fieldLabel, value string) {
	for i, f := range c.FormDefaults {
		if f.FieldLabel == fieldLabel {
			c.FormDefaults[i].Value = value
			return
		}
	}
	c.FormDefaults = append(c.FormDefaults, FormField{FieldLabel: fieldLabel, Value: value})
}

// CaseRecord is a stored classification outcome. Unmatched titles are
// recorded too, with the raw title carried as the fallback subject.
type CaseRecord struct {
	// ID is the unique record identifier
	ID string `json:"id"`

	// RawTitle is the alert title as received
	RawTitle string `json:"raw_title"`

	// Matched reports whether any rule classified the title
	Matched bool `json:"matched"`

	// Subject is the rendered subject, or the raw title when unmatched
	Subject string `json:"subject"`

	AlertTypeName string      `json:"alert_type_name,omitempty"`
	CarrierModule string      `json:"carrier_module,omitempty"`
	FormDefaults  []FormField `json:"form_defaults,omitempty"`

	// CreatedAt is when the classification happened
	CreatedAt time.Time `json:"created_at"`
}

// NewCaseRecord builds a record for a classification outcome. info may be
// nil for unmatched titles; the raw title then becomes the subject.
func NewCaseRecord(rawTitle string, info *CaseInfo) *CaseRecord {
	rec := &CaseRecord{
		ID:        uuid.NewString(),
		RawTitle:  rawTitle,
		Subject:   rawTitle,
		CreatedAt: time.Now().UTC(),
	}
	if info != nil {
		rec.Matched = true
		rec.Subject = info.Subject
		rec.AlertTypeName = info.AlertTypeName
		rec.CarrierModule = info.CarrierModule
		rec.FormDefaults = info.FormDefaults
	}
	return rec
}

// Validate checks the record for storage.
func (r *CaseRecord) Validate() error {
	if r == nil {
		return errors.New("record cannot be nil")
	}
	if r.ID == "" {
		return errors.New("record ID cannot be empty")
	}
	if r.RawTitle == "" {
		return errors.New("record raw title cannot be empty")
	}
	return nil
}

// TypeCount is a per-alert-type classification count.
type TypeCount struct {
	AlertTypeName string `json:"alert_type_name"`
	Count         int64  `json:"count"`
}
