package domain

import (
	"fmt"
	"time"
)

// Status of an assignment from the student's point of view.
type Status string

const (
	StatusPending   Status = "pending"
	StatusLate      Status = "late"
	StatusSubmitted Status = "submitted"
)

// Date is a calendar date without time zone, as returned by Classroom.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// TimeOfDay is an optional due time (UTC in Classroom).
type TimeOfDay struct {
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
}

// Valid reports whether d names a real calendar date.
func (d *Date) Valid() bool {
	if d == nil || d.Year <= 0 || d.Month < 1 || d.Month > 12 || d.Day < 1 {
		return false
	}
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return t.Day() == d.Day
}

// Midnight returns the start of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// Assignment is one piece of course work joined with the student's submission state.
type Assignment struct {
	Title      string     `json:"title"`
	CourseName string     `json:"courseName"`
	DueDate    *Date      `json:"dueDate,omitempty"`
	DueTime    *TimeOfDay `json:"dueTime,omitempty"`
	Status     Status     `json:"status"`
	Link       string     `json:"link,omitempty"`

	Description    string   `json:"description,omitempty"`
	MaxPoints      *float64 `json:"maxPoints,omitempty"`
	CompletionTime string   `json:"completionTime,omitempty"`
	Source         string   `json:"source,omitempty"`
}
