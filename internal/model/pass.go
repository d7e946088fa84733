// Package model holds the records persisted by the pass service.  The JSON
// tags define the on-disk document shape and the HTTP response bodies.
package model

import "time"

// PassStatus is the lifecycle state of an issued pass.  Only StatusValid is
// produced today; StatusCancelled is reserved for a cancellation flow.
type PassStatus string

const (
	StatusValid     PassStatus = "valid"
	StatusCancelled PassStatus = "cancelled"
)

// Pass is one issued ticket.  ID is the sequential identifier handed out by
// the store and SerialNumber the human-facing PREFIX-SEQ-HASH6 form; the
// attendee and event fields are free-form text printed on the pass.
type Pass struct {
	ID           int64      `json:"id"`
	SerialNumber string     `json:"serial_number"`
	AttendeeName string     `json:"attendee_name"`
	TicketType   string     `json:"ticket_type"`
	EventName    string     `json:"event_name"`
	EventDate    string     `json:"event_date"`
	Venue        string     `json:"venue"`
	IssuedAt     time.Time  `json:"issued_at"`
	Status       PassStatus `json:"status"`
}

// Scan records the first successful entry of a pass.  A serial number has
// at most one Scan.
type Scan struct {
	SerialNumber string    `json:"serial_number"`
	ScannedAt    time.Time `json:"scanned_at"`
}
