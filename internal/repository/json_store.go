package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iliyamo/event-pass-system/internal/model"
)

// JSONStore persists the whole model.Document as one indented JSON file.
// Every mutation updates the in-memory document and rewrites the file
// before returning, so a successful call is always durable.  A single
// mutex serialises all reads and read-modify-write sequences.
//
// When a write fails the in-memory change is rolled back, except for the
// serial counter: a consumed counter value is never handed out again.
type JSONStore struct {
	path string

	mu     sync.Mutex
	doc    model.Document
	closed bool
}

// OpenJSONStore loads the document at path.  A missing file is not an
// error: an empty document with next_serial = 1 and the given powered-by
// defaults is created and written immediately.  Keys absent from an
// existing file take the same defaults.
func OpenJSONStore(path string, poweredBy model.PoweredBy) (*JSONStore, error) {
	s := &JSONStore{path: path}
	s.doc = model.Document{
		Passes:     []model.Pass{},
		Scanned:    []model.Scan{},
		Sponsors:   []model.Sponsor{},
		PoweredBy:  poweredBy,
		NextSerial: 1,
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := s.save(); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read document: %w", err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", path, err)
	}
	s.normalize()
	return s, nil
}

// normalize repairs a loaded document: nil lists become empty and the
// counter is moved past every persisted id so it can never collide.
func (s *JSONStore) normalize() {
	if s.doc.Passes == nil {
		s.doc.Passes = []model.Pass{}
	}
	if s.doc.Scanned == nil {
		s.doc.Scanned = []model.Scan{}
	}
	if s.doc.Sponsors == nil {
		s.doc.Sponsors = []model.Sponsor{}
	}
	if s.doc.NextSerial < 1 {
		s.doc.NextSerial = 1
	}
	for _, p := range s.doc.Passes {
		if p.ID >= s.doc.NextSerial {
			s.doc.NextSerial = p.ID + 1
		}
	}
}

// save writes the document to a temporary file in the same directory and
// renames it over the old one, so readers never observe a half-written
// file.  Callers must hold s.mu.
func (s *JSONStore) save() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".passes-*.json")
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

func (s *JSONStore) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// NextSerial returns the current counter value and persists the increment.
func (s *JSONStore) NextSerial(ctx context.Context) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	n := s.doc.NextSerial
	s.doc.NextSerial = n + 1
	if err := s.save(); err != nil {
		return 0, err
	}
	return n, nil
}

// AddPass appends p and persists the document.
func (s *JSONStore) AddPass(ctx context.Context, p model.Pass) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	prev := s.doc.Passes
	s.doc.Passes = append(s.doc.Passes, p)
	if err := s.save(); err != nil {
		s.doc.Passes = prev
		return err
	}
	return nil
}

// ListPasses returns a copy of every pass in issuance order.
func (s *JSONStore) ListPasses(ctx context.Context) ([]model.Pass, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]model.Pass, len(s.doc.Passes))
	copy(out, s.doc.Passes)
	return out, nil
}

// GetPassBySerial returns the pass with the given serial, or nil when
// there is none.
func (s *JSONStore) GetPassBySerial(ctx context.Context, serial string) (*model.Pass, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	for _, p := range s.doc.Passes {
		if p.SerialNumber == serial {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

// AddScan records a scan for serial at the given time.  The store does not
// check for duplicates; the lifecycle manager owns that rule.
func (s *JSONStore) AddScan(ctx context.Context, serial string, at time.Time) (model.Scan, error) {
	if err := s.lock(); err != nil {
		return model.Scan{}, err
	}
	defer s.mu.Unlock()
	scan := model.Scan{SerialNumber: serial, ScannedAt: at}
	prev := s.doc.Scanned
	s.doc.Scanned = append(s.doc.Scanned, scan)
	if err := s.save(); err != nil {
		s.doc.Scanned = prev
		return model.Scan{}, err
	}
	return scan, nil
}

// GetScan returns the scan for serial, or nil when it was never scanned.
func (s *JSONStore) GetScan(ctx context.Context, serial string) (*model.Scan, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	for _, sc := range s.doc.Scanned {
		if sc.SerialNumber == serial {
			found := sc
			return &found, nil
		}
	}
	return nil, nil
}

// AddSponsor appends a sponsor and persists the document.
func (s *JSONStore) AddSponsor(ctx context.Context, sp model.Sponsor) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()
	prev := s.doc.Sponsors
	s.doc.Sponsors = append(s.doc.Sponsors, sp)
	if err := s.save(); err != nil {
		s.doc.Sponsors = prev
		return err
	}
	return nil
}

// ListSponsors returns a copy of the sponsors in insertion order.
func (s *JSONStore) ListSponsors(ctx context.Context) ([]model.Sponsor, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	out := make([]model.Sponsor, len(s.doc.Sponsors))
	copy(out, s.doc.Sponsors)
	return out, nil
}

// RemoveSponsor deletes every sponsor whose name equals name and reports
// how many were removed.  Removing an unknown name is not an error; the
// document is still rewritten, matching every other mutation.
func (s *JSONStore) RemoveSponsor(ctx context.Context, name string) (int, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	prev := s.doc.Sponsors
	kept := make([]model.Sponsor, 0, len(prev))
	for _, sp := range prev {
		if sp.Name != name {
			kept = append(kept, sp)
		}
	}
	s.doc.Sponsors = kept
	if err := s.save(); err != nil {
		s.doc.Sponsors = prev
		return 0, err
	}
	return len(prev) - len(kept), nil
}

// UpdatePoweredBy replaces the powered-by record.
func (s *JSONStore) UpdatePoweredBy(ctx context.Context, name, logo string, at time.Time) (model.PoweredBy, error) {
	if err := s.lock(); err != nil {
		return model.PoweredBy{}, err
	}
	defer s.mu.Unlock()
	prev := s.doc.PoweredBy
	s.doc.PoweredBy = model.PoweredBy{Name: name, Logo: logo, UpdatedAt: &at}
	if err := s.save(); err != nil {
		s.doc.PoweredBy = prev
		return model.PoweredBy{}, err
	}
	return s.doc.PoweredBy, nil
}

// GetPoweredBy returns the current powered-by record.
func (s *JSONStore) GetPoweredBy(ctx context.Context) (model.PoweredBy, error) {
	if err := s.lock(); err != nil {
		return model.PoweredBy{}, err
	}
	defer s.mu.Unlock()
	return s.doc.PoweredBy, nil
}

// Stats counts passes and scans.
func (s *JSONStore) Stats(ctx context.Context) (model.Stats, error) {
	if err := s.lock(); err != nil {
		return model.Stats{}, err
	}
	defer s.mu.Unlock()
	return model.NewStats(len(s.doc.Passes), len(s.doc.Scanned)), nil
}

// Close marks the store closed.  The document is already on disk.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
