package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayouts are accepted for timestamps written without a zone offset,
// as older documents store them.  They are read in local time.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// Timestamp decodes RFC 3339 times as well as the zone-less forms in
// naiveLayouts.  Encoding is plain RFC 3339.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.Time = t
		return nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("timestamp: cannot parse %q", s)
}

// The record types keep time.Time fields; their decoders route the
// timestamp keys through Timestamp.

func (p *Pass) UnmarshalJSON(b []byte) error {
	type plain Pass
	aux := struct {
		*plain
		IssuedAt Timestamp `json:"issued_at"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.IssuedAt = aux.IssuedAt.Time
	return nil
}

func (s *Scan) UnmarshalJSON(b []byte) error {
	type plain Scan
	aux := struct {
		*plain
		ScannedAt Timestamp `json:"scanned_at"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.ScannedAt = aux.ScannedAt.Time
	return nil
}

func (sp *Sponsor) UnmarshalJSON(b []byte) error {
	type plain Sponsor
	aux := struct {
		*plain
		AddedAt Timestamp `json:"added_at"`
	}{plain: (*plain)(sp)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	sp.AddedAt = aux.AddedAt.Time
	return nil
}

func (pb *PoweredBy) UnmarshalJSON(b []byte) error {
	type plain PoweredBy
	aux := struct {
		*plain
		UpdatedAt *Timestamp `json:"updated_at,omitempty"`
	}{plain: (*plain)(pb)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	pb.UpdatedAt = nil
	if aux.UpdatedAt != nil && !aux.UpdatedAt.IsZero() {
		t := aux.UpdatedAt.Time
		pb.UpdatedAt = &t
	}
	return nil
}
