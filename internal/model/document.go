package model

import (
	"math"
	"time"
)

// Document is the complete persisted state of the service.  The JSON
// record store reads and rewrites it as a unit.
type Document struct {
	Passes     []Pass    `json:"passes"`
	Scanned    []Scan    `json:"scanned"`
	Sponsors   []Sponsor `json:"sponsors"`
	PoweredBy  PoweredBy `json:"powered_by"`
	NextSerial int64     `json:"next_serial"`
}

// Stats summarises attendance.  AttendanceRate is a percentage rounded to
// one decimal place.
type Stats struct {
	Total          int     `json:"total"`
	Scanned        int     `json:"scanned"`
	Pending        int     `json:"pending"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// Verdict is the outcome of verifying or scanning a serial number.
// Details is nil when the serial is unknown; ScannedAt is set only for
// already-scanned passes.
type Verdict struct {
	Valid     bool       `json:"valid"`
	Message   string     `json:"message"`
	Details   *Pass      `json:"details"`
	ScannedAt *time.Time `json:"scanned_at,omitempty"`
}

// NewStats derives pending and attendance rate from the two counts.  An
// empty store reports a zero rate instead of dividing by zero.
func NewStats(total, scanned int) Stats {
	st := Stats{Total: total, Scanned: scanned, Pending: total - scanned}
	if total > 0 {
		st.AttendanceRate = math.Round(float64(scanned)/float64(total)*1000) / 10
	}
	return st
}
