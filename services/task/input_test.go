package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tasktracker/pkg/errutil"
)

func strPtr(s string) *string { return &s }

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   *string
		want *time.Time
	}{
		{nil, nil},
		{strPtr(""), nil},
		{strPtr("   "), nil},
		{strPtr("2024-01-05"), date("2024-01-05")},
		{strPtr("2024-01-05T09:30"), ptrTime(time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC))},
		{strPtr("2024-01-05T09:30:15"), ptrTime(time.Date(2024, 1, 5, 9, 30, 15, 0, time.UTC))},
		{strPtr("2024-01-05T09:30:00+09:00"), ptrTime(time.Date(2024, 1, 5, 0, 30, 0, 0, time.UTC))},
	}

	for _, tc := range cases {
		got, err := ParseDate("limit_date", tc.in)
		require.NoError(t, err)
		if tc.want == nil {
			require.Nil(t, got)
			continue
		}
		require.NotNil(t, got)
		require.True(t, tc.want.Equal(*got), "%v != %v", tc.want, got)
		require.Equal(t, time.UTC, got.Location())
	}
}

func TestParseDateInvalid(t *testing.T) {
	_, err := ParseDate("scheduled_end_date", strPtr("next tuesday"))
	require.True(t, errutil.Is(err, errutil.StatusValidationFailed))
	require.Contains(t, err.Error(), "invalid scheduled_end_date format")
}

func TestInputValidate(t *testing.T) {
	ok := Input{Name: "write report"}
	require.NoError(t, ok.Validate())

	blank := Input{Name: "  "}
	require.True(t, errutil.Is(blank.Validate(), errutil.StatusValidationFailed))

	onlyStart := Input{Name: "a", ScheduledStartDate: date("2024-01-01")}
	require.ErrorContains(t, onlyStart.Validate(), "both scheduled_start_date and scheduled_end_date")

	onlyEnd := Input{Name: "a", ScheduledEndDate: date("2024-01-01")}
	require.ErrorContains(t, onlyEnd.Validate(), "both scheduled_start_date and scheduled_end_date")

	reversed := Input{Name: "a", ScheduledStartDate: date("2024-01-05"), ScheduledEndDate: date("2024-01-01")}
	require.ErrorContains(t, reversed.Validate(), "must not be after")

	sameDay := Input{Name: "a", ScheduledStartDate: date("2024-01-05"), ScheduledEndDate: date("2024-01-05")}
	require.NoError(t, sameDay.Validate())
}

func TestStatusAllows(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
		want   bool
	}{
		{StatusTodo, ActionStart, true},
		{StatusDoing, ActionStart, true},
		{StatusCompleted, ActionStart, false},
		{StatusDeleted, ActionStart, false},
		{StatusTodo, ActionPause, false},
		{StatusDoing, ActionPause, true},
		{StatusTodo, ActionEnd, true},
		{StatusCompleted, ActionEnd, false},
		{StatusDeleted, ActionEnd, false},
		{StatusCompleted, ActionDelete, true},
		{StatusDeleted, ActionDelete, false},
		{StatusTodo, ActionRestore, false},
		{StatusDoing, ActionRestore, false},
		{StatusCompleted, ActionRestore, true},
		{StatusDeleted, ActionRestore, true},
		{Status("archived"), ActionStart, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.from.Allows(tc.action), "%s -> %s", tc.from, tc.action)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
