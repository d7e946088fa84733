// Package service implements the pass lifecycle: issuing passes, the
// verify/scan state machine, sponsor and powered-by branding, and
// attendance statistics.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-pass-system/internal/model"
	"github.com/iliyamo/event-pass-system/internal/qr"
	"github.com/iliyamo/event-pass-system/internal/queue"
	"github.com/iliyamo/event-pass-system/internal/render"
	"github.com/iliyamo/event-pass-system/internal/repository"
	"github.com/iliyamo/event-pass-system/internal/serial"
)

// ErrValidation marks a request rejected before any state changed.
var ErrValidation = errors.New("validation failed")

// Verdict messages.
const (
	MsgNotFound       = "Invalid pass - Serial number not found"
	MsgCancelled      = "Pass cancelled or invalid"
	MsgAlreadyScanned = "Pass already scanned"
	MsgEntryGranted   = "Valid pass - Entry granted"
)

// Store is the record store the manager drives.  Lookups return nil, nil
// when the record does not exist.
type Store interface {
	NextSerial(ctx context.Context) (int64, error)
	AddPass(ctx context.Context, p model.Pass) error
	ListPasses(ctx context.Context) ([]model.Pass, error)
	GetPassBySerial(ctx context.Context, serial string) (*model.Pass, error)
	AddScan(ctx context.Context, serial string, at time.Time) (model.Scan, error)
	GetScan(ctx context.Context, serial string) (*model.Scan, error)
	AddSponsor(ctx context.Context, sp model.Sponsor) error
	ListSponsors(ctx context.Context) ([]model.Sponsor, error)
	RemoveSponsor(ctx context.Context, name string) (int, error)
	UpdatePoweredBy(ctx context.Context, name, logo string, at time.Time) (model.PoweredBy, error)
	GetPoweredBy(ctx context.Context) (model.PoweredBy, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Renderer turns pass data into a stored image and returns its file name.
type Renderer interface {
	CreatePassImage(in render.Input) (string, error)
}

// PassService orchestrates the store, serial generator, QR encoder and
// renderer.  All scan decisions go through mu so that, for a given serial,
// at most one Scan call ever reports valid.
type PassService struct {
	store     Store
	serials   *serial.Generator
	renderer  Renderer
	publisher Publisher
	log       logrus.FieldLogger
	now       func() time.Time

	mu sync.Mutex
}

// Option customises a PassService.
type Option func(*PassService)

// WithClock replaces time.Now for issuance and scan timestamps.
func WithClock(now func() time.Time) Option { return func(s *PassService) { s.now = now } }

// WithPublisher sets the event publisher; the default drops events.
func WithPublisher(p Publisher) Option { return func(s *PassService) { s.publisher = p } }

// WithLogger sets the logger; the default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option { return func(s *PassService) { s.log = l } }

// NewPassService wires the lifecycle manager.  store, serials and renderer
// must be non-nil.
func NewPassService(store Store, serials *serial.Generator, renderer Renderer, opts ...Option) *PassService {
	if store == nil || serials == nil || renderer == nil {
		panic("nil dependency passed to NewPassService")
	}
	s := &PassService{
		store:     store,
		serials:   serials,
		renderer:  renderer,
		publisher: NopPublisher{},
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreatePassInput carries the attendee and event details of a new pass.
type CreatePassInput struct {
	AttendeeName string
	TicketType   string
	EventName    string
	EventDate    string
	Venue        string
}

func (in *CreatePassInput) normalize() error {
	in.AttendeeName = strings.TrimSpace(in.AttendeeName)
	in.TicketType = strings.TrimSpace(in.TicketType)
	in.EventName = strings.TrimSpace(in.EventName)
	in.EventDate = strings.TrimSpace(in.EventDate)
	in.Venue = strings.TrimSpace(in.Venue)
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"name", in.AttendeeName},
		{"ticketType", in.TicketType},
		{"eventName", in.EventName},
		{"eventDate", in.EventDate},
		{"venue", in.Venue},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// CreatePassResult identifies a newly issued pass and its image.
type CreatePassResult struct {
	Pass     model.Pass
	Filename string
}

// CreatePass validates in, allocates the next counter value, builds the
// serial, renders the QR code and pass image and persists the record.
// Validation happens before allocation, so rejected requests never
// consume a counter value.  Failures after allocation leave a permanent,
// harmless gap in the id sequence.
func (s *PassService) CreatePass(ctx context.Context, in CreatePassInput) (CreatePassResult, error) {
	if err := in.normalize(); err != nil {
		return CreatePassResult{}, err
	}

	seq, err := s.store.NextSerial(ctx)
	if err != nil {
		return CreatePassResult{}, fmt.Errorf("allocate serial: %w", err)
	}
	p := model.Pass{
		ID:           seq,
		SerialNumber: s.serials.Generate(in.AttendeeName, in.TicketType, seq),
		AttendeeName: in.AttendeeName,
		TicketType:   in.TicketType,
		EventName:    in.EventName,
		EventDate:    in.EventDate,
		Venue:        in.Venue,
		IssuedAt:     s.now(),
		Status:       model.StatusValid,
	}
	log := s.log.WithFields(logrus.Fields{"serial": p.SerialNumber, "id": p.ID})

	code, err := qr.Encode(qr.Payload{Serial: p.SerialNumber, Event: p.EventName, Name: p.AttendeeName})
	if err != nil {
		return CreatePassResult{}, err
	}
	sponsors, err := s.store.ListSponsors(ctx)
	if err != nil {
		return CreatePassResult{}, err
	}
	poweredBy, err := s.store.GetPoweredBy(ctx)
	if err != nil {
		return CreatePassResult{}, err
	}
	filename, err := s.renderer.CreatePassImage(render.Input{
		Pass:      p,
		QR:        code.Image(),
		Sponsors:  sponsors,
		PoweredBy: poweredBy,
	})
	if err != nil {
		log.WithError(err).Error("render pass")
		return CreatePassResult{}, err
	}
	if err := s.store.AddPass(ctx, p); err != nil {
		log.WithError(err).Error("persist pass")
		return CreatePassResult{}, fmt.Errorf("persist pass: %w", err)
	}
	log.Info("pass issued")

	if err := s.publisher.PassIssued(ctx, queue.PassIssuedEvent{
		ID:           p.ID,
		SerialNumber: p.SerialNumber,
		AttendeeName: p.AttendeeName,
		TicketType:   p.TicketType,
		EventName:    p.EventName,
		Filename:     filename,
		IssuedAt:     p.IssuedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		log.WithError(err).Warn("publish pass.issued")
	}
	return CreatePassResult{Pass: p, Filename: filename}, nil
}

// Verify reports whether serial would be admitted now.  It never mutates
// state.  The error is non-nil only when the store fails.
func (s *PassService) Verify(ctx context.Context, serial string) (model.Verdict, error) {
	p, err := s.store.GetPassBySerial(ctx, serial)
	if err != nil {
		return model.Verdict{}, err
	}
	if p == nil {
		return model.Verdict{Valid: false, Message: MsgNotFound}, nil
	}
	if p.Status != model.StatusValid {
		return model.Verdict{Valid: false, Message: MsgCancelled, Details: p}, nil
	}
	scan, err := s.store.GetScan(ctx, serial)
	if err != nil {
		return model.Verdict{}, err
	}
	if scan != nil {
		at := scan.ScannedAt
		return model.Verdict{Valid: false, Message: MsgAlreadyScanned, Details: p, ScannedAt: &at}, nil
	}
	return model.Verdict{Valid: true, Message: MsgEntryGranted, Details: p}, nil
}

// Scan verifies serial and, only when the verdict is valid, records the
// scan.  It returns the verdict as it stood before recording, so the first
// caller gets valid and every later caller gets already scanned with the
// original timestamp.
func (s *PassService) Scan(ctx context.Context, serial string) (model.Verdict, error) {
	s.mu.Lock()
	v, err := s.Verify(ctx, serial)
	if err != nil || !v.Valid {
		s.mu.Unlock()
		return v, err
	}
	scan, err := s.store.AddScan(ctx, serial, s.now())
	if errors.Is(err, repository.ErrAlreadyScanned) {
		// Another process sharing the database won the race.
		v, err = s.Verify(ctx, serial)
		s.mu.Unlock()
		return v, err
	}
	s.mu.Unlock()
	if err != nil {
		return model.Verdict{}, fmt.Errorf("record scan: %w", err)
	}

	s.log.WithField("serial", serial).Info("entry granted")
	if err := s.publisher.PassScanned(ctx, queue.PassScannedEvent{
		SerialNumber: serial,
		AttendeeName: v.Details.AttendeeName,
		TicketType:   v.Details.TicketType,
		EventName:    v.Details.EventName,
		ScannedAt:    scan.ScannedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		s.log.WithError(err).WithField("serial", serial).Warn("publish pass.scanned")
	}
	return v, nil
}

// ListPasses returns every issued pass in issuance order.
func (s *PassService) ListPasses(ctx context.Context) ([]model.Pass, error) {
	return s.store.ListPasses(ctx)
}

// Stats returns attendance totals.
func (s *PassService) Stats(ctx context.Context) (model.Stats, error) {
	return s.store.Stats(ctx)
}
