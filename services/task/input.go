package task

import (
	"fmt"
	"strings"
	"time"

	"tasktracker/pkg/errutil"
)

// Accepted date layouts, tried in order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate reads an optional date field. nil and "" both mean absent.
func ParseDate(field string, value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}

	raw := strings.TrimSpace(*value)
	if raw == "" {
		return nil, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}

	return nil, errutil.ValidationFailed(
		fmt.Sprintf("invalid %s format: use YYYY-MM-DD or YYYY-MM-DDTHH:MM", field),
		nil,
		errutil.WithDetails(errutil.Detail{Field: field, Message: fmt.Sprintf("cannot parse %q", raw)}),
	)
}

// Input carries the user-editable fields of a task, already parsed.
type Input struct {
	Name               string
	Detail             *string
	LimitDate          *time.Time
	ScheduledStartDate *time.Time
	ScheduledEndDate   *time.Time
	// IsNotMain left nil keeps the stored value on update and means false on create.
	IsNotMain *bool
}

func (in *Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errutil.ValidationFailed("name is required", nil,
			errutil.WithDetails(errutil.Detail{Field: "name", Message: "must not be empty"}))
	}

	if (in.ScheduledStartDate == nil) != (in.ScheduledEndDate == nil) {
		return errutil.ValidationFailed(
			"both scheduled_start_date and scheduled_end_date must be provided, or both left empty", nil)
	}

	if in.ScheduledStartDate != nil && in.ScheduledStartDate.After(*in.ScheduledEndDate) {
		return errutil.ValidationFailed("scheduled_start_date must not be after scheduled_end_date", nil)
	}

	return nil
}

// normalize trims the name and turns an empty detail into null.
func (in *Input) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Detail = emptyToNil(in.Detail)
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
