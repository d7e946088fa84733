// Package queue defines the pass lifecycle events exchanged over RabbitMQ
// and the consumer that turns scan events into an entry log.
package queue

const (
	// PassIssuedQueue receives a PassIssuedEvent for every persisted pass.
	PassIssuedQueue = "pass.issued"
	// PassScannedQueue receives a PassScannedEvent for every granted entry.
	PassScannedQueue = "pass.scanned"
)

// PassIssuedEvent is published after a pass has been rendered and stored.
type PassIssuedEvent struct {
	ID           int64  `json:"id"`
	SerialNumber string `json:"serial_number"`
	AttendeeName string `json:"attendee_name"`
	TicketType   string `json:"ticket_type"`
	EventName    string `json:"event_name"`
	Filename     string `json:"filename"`
	IssuedAt     string `json:"issued_at"`
}

// PassScannedEvent is published when a scan grants entry.  Denied scans are
// not published.
type PassScannedEvent struct {
	SerialNumber string `json:"serial_number"`
	AttendeeName string `json:"attendee_name"`
	TicketType   string `json:"ticket_type"`
	EventName    string `json:"event_name"`
	ScannedAt    string `json:"scanned_at"`
}
