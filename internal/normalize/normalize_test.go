package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/punchsync/pkg/models"
)

var header = []string{"Id", "Employer", "Status", "Service Date", "Start Time", "End Time", "Amount", "Service Code"}

func losAngeles(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	return loc
}

func TestNormalizeValidRows(t *testing.T) {
	loc := losAngeles(t)
	table := models.Table{
		Header: header,
		Rows: [][]string{
			{"101", "ACME", "Approved", "Jul 28, 2025", "01:00 PM", "03:30 PM", "0:02:30", "331"},
			{"102", "ACME", "Unvalidated", "Jul 29, 2025", "9:15 am", "10:15 am", "0:01:00", "320"},
		},
	}

	batch, err := Normalize(table, "Jesus", loc)
	require.NoError(t, err)
	require.Len(t, batch.Punches, 2)
	assert.Empty(t, batch.Errors)
	assert.Empty(t, batch.Warnings)

	p := batch.Punches[0]
	assert.Equal(t, int64(101), p.ID)
	assert.Equal(t, "Jesus", p.EmployeeName)
	assert.Equal(t, models.StatusApproved, p.Status)
	assert.Equal(t, "331", p.ServiceCode)
	assert.Equal(t, 2*time.Hour+30*time.Minute, p.Amount)
	assert.Equal(t, time.Date(2025, time.July, 28, 0, 0, 0, 0, loc), p.ServiceDate)
	assert.Equal(t, time.Date(2025, time.July, 28, 13, 0, 0, 0, loc), p.StartTime)
	assert.Equal(t, time.Date(2025, time.July, 28, 15, 30, 0, 0, loc), p.EndTime)

	assert.Equal(t, models.StatusUnvalidated, batch.Punches[1].Status)
	assert.Equal(t, time.Date(2025, time.July, 29, 9, 15, 0, 0, loc), batch.Punches[1].StartTime)
}

func TestNormalizeDropsOpenPunches(t *testing.T) {
	table := models.Table{
		Header: header,
		Rows: [][]string{
			{"1", "ACME", "Approved", "Jun 3, 2025", "08:00 AM", "09:30 AM", "0:01:30", "331"},
			{"2", "ACME", "Open", "Jun 3, 2025", "10:00 AM", "", "", "331"},
		},
	}

	batch, err := Normalize(table, "Enrique", time.UTC)
	require.NoError(t, err)
	require.Len(t, batch.Punches, 1)
	assert.Equal(t, int64(1), batch.Punches[0].ID)
	assert.Equal(t, 1, batch.Skipped)
	assert.Empty(t, batch.Errors)
}

func TestNormalizeKeepsRejectedForRetraction(t *testing.T) {
	table := models.Table{
		Header: header,
		Rows: [][]string{
			{"5", "ACME", "Rejected", "Jun 3, 2025", "08:00 AM", "09:00 AM", "0:01:00", "320"},
		},
	}

	batch, err := Normalize(table, "Enrique", time.UTC)
	require.NoError(t, err)
	require.Len(t, batch.Punches, 1)
	assert.Equal(t, models.StatusRejected, batch.Punches[0].Status)
}

func TestNormalizeMissingColumns(t *testing.T) {
	table := models.Table{
		Header: []string{"Id", "Status", "Service Date"},
		Rows:   [][]string{{"1", "Approved", "Jun 3, 2025"}},
	}

	_, err := Normalize(table, "Jesus", time.UTC)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.ElementsMatch(t, []string{"Start Time", "End Time", "Amount", "Service Code"}, schemaErr.Missing)
}

func TestNormalizeIsolatesBadRows(t *testing.T) {
	table := models.Table{
		Header: header,
		Rows: [][]string{
			{"1", "ACME", "Approved", "2025-06-03", "08:00 AM", "09:00 AM", "0:01:00", "331"},
			{"2", "ACME", "Approved", "Jun 4, 2025", "25:00 PM", "09:00 AM", "0:01:00", "331"},
			{"3", "ACME", "Approved", "Jun 5, 2025", "08:00 AM", "09:00 AM", "bogus", "331"},
			{"x", "ACME", "Approved", "Jun 6, 2025", "08:00 AM", "09:00 AM", "0:01:00", "331"},
			{"4", "ACME", "Approved", "Jun 7, 2025", "08:00 AM", "09:00 AM", "0:01:00", "331"},
		},
	}

	batch, err := Normalize(table, "Jesus", time.UTC)
	require.NoError(t, err)
	require.Len(t, batch.Punches, 1)
	assert.Equal(t, int64(4), batch.Punches[0].ID)

	require.Len(t, batch.Errors, 4)
	assert.Equal(t, ColServiceDate, batch.Errors[0].Column)
	assert.Equal(t, 0, batch.Errors[0].Row)
	assert.Equal(t, ColStartTime, batch.Errors[1].Column)
	assert.Equal(t, ColAmount, batch.Errors[2].Column)
	assert.Equal(t, ColID, batch.Errors[3].Column)
	assert.Equal(t, "x", batch.Errors[3].ID)
}

func TestNormalizeFlagsInconsistentRecords(t *testing.T) {
	table := models.Table{
		Header: header,
		Rows: [][]string{
			{"1", "ACME", "Approved", "Jun 3, 2025", "10:00 AM", "09:00 AM", "0:01:00", "331"},
			{"2", "ACME", "Approved", "Jun 3, 2025", "10:00 AM", "11:00 AM", "0:03:00", "331"},
			{"3", "ACME", "Approved", "Jun 3, 2025", "10:00 AM", "11:00 AM", "0:01:00", "331"},
		},
	}

	batch, err := Normalize(table, "Jesus", time.UTC)
	require.NoError(t, err)
	assert.Len(t, batch.Punches, 3)
	require.Len(t, batch.Warnings, 2)
	assert.Equal(t, int64(1), batch.Warnings[0].ID)
	assert.Contains(t, batch.Warnings[0].Error(), "not after")
	assert.Equal(t, int64(2), batch.Warnings[1].ID)
	assert.Contains(t, batch.Warnings[1].Error(), "disagrees")
}

func TestParseAmount(t *testing.T) {
	cases := map[string]time.Duration{
		"0:02:30": 2*time.Hour + 30*time.Minute,
		"02:00":   2 * time.Hour,
		"0:00:45": 45 * time.Minute,
		"1:10:05": 10*time.Hour + 5*time.Minute,
	}
	for in, want := range cases {
		got, err := ParseAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "5", "0:aa:10", "0:01:75"} {
		_, err := ParseAmount(bad)
		assert.Error(t, err, bad)
	}
}
