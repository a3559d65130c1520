package models

import (
	"strings"
	"time"
)

// Status is the canonical state of a punch on the portal
type Status string

const (
	StatusOpen        Status = "Open"
	StatusUnvalidated Status = "Unvalidated"
	StatusRejected    Status = "Rejected"
	StatusApproved    Status = "Approved"
)

// ParseStatus canonicalizes a raw status cell. Unknown values are kept as-is
// and count as valid.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	for _, known := range []Status{StatusOpen, StatusUnvalidated, StatusRejected, StatusApproved} {
		if strings.EqualFold(s, string(known)) {
			return known
		}
	}
	return Status(s)
}

// Valid reports whether a punch with this status is settled and may be
// stored and projected.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusUnvalidated, StatusRejected:
		return false
	}
	return true
}

// Punch represents one shift entry for an employee
type Punch struct {
	ID              int64         `json:"id" bson:"_id"`
	EmployeeName    string        `json:"employee_name" bson:"employee_name"`
	ServiceDate     time.Time     `json:"service_date" bson:"service_date"` // Midnight in the target timezone
	StartTime       time.Time     `json:"start_time" bson:"start_time"`
	EndTime         time.Time     `json:"end_time" bson:"end_time"`
	Amount          time.Duration `json:"amount" bson:"amount"` // From the portal's Amount cell, not EndTime-StartTime
	ServiceCode     string        `json:"service_code" bson:"service_code"`
	Status          Status        `json:"status" bson:"status"`
	CalendarEventID string        `json:"calendar_event_id,omitempty" bson:"calendar_event_id,omitempty"`
}

// Table is a raw punches extract: ordered column names and string cells
type Table struct {
	Header []string
	Rows   [][]string
}

// Credentials are the portal login for one employee
type Credentials struct {
	Employee string
	Email    string
	Password string
}
