package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-pass-system/internal/model"
	"github.com/iliyamo/event-pass-system/internal/queue"
	"github.com/iliyamo/event-pass-system/internal/render"
	"github.com/iliyamo/event-pass-system/internal/repository"
	"github.com/iliyamo/event-pass-system/internal/serial"
)

// clock is a manually advanced time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu      sync.Mutex
	issued  []queue.PassIssuedEvent
	scanned []queue.PassScannedEvent
	err     error
}

func (p *recordingPublisher) PassIssued(_ context.Context, ev queue.PassIssuedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issued = append(p.issued, ev)
	return p.err
}

func (p *recordingPublisher) PassScanned(_ context.Context, ev queue.PassScannedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanned = append(p.scanned, ev)
	return p.err
}

type env struct {
	svc       *PassService
	store     *repository.JSONStore
	dbPath    string
	passesDir string
	clock     *clock
	pub       *recordingPublisher
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		dbPath:    filepath.Join(root, "passes_database.json"),
		passesDir: filepath.Join(root, "passes"),
		clock:     &clock{t: time.Date(2025, 12, 31, 20, 0, 0, 0, time.UTC)},
		pub:       &recordingPublisher{},
	}
	require.NoError(t, os.MkdirAll(e.passesDir, 0o755))
	e.reopen(t)
	return e
}

// reopen simulates a process restart against the same document.
func (e *env) reopen(t *testing.T) {
	t.Helper()
	if e.store != nil {
		require.NoError(t, e.store.Close())
	}
	store, err := repository.OpenJSONStore(e.dbPath, model.PoweredBy{Name: "rave.live", Logo: "rave_logo.png"})
	require.NoError(t, err)
	e.store = store
	gen, err := serial.NewGenerator("NYE2025", e.clock.Now)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	r := render.New(render.Options{PassesDir: e.passesDir, SponsorsDir: e.passesDir, PoweredByDir: e.passesDir, Logger: logger})
	e.svc = NewPassService(store, gen, r, WithClock(e.clock.Now), WithPublisher(e.pub), WithLogger(logger))
}

func (e *env) create(t *testing.T, name string) CreatePassResult {
	t.Helper()
	res, err := e.svc.CreatePass(context.Background(), CreatePassInput{
		AttendeeName: name, TicketType: "VIP", EventName: "SAVORA", EventDate: "DECEMBER 31ST", Venue: "Hall A",
	})
	require.NoError(t, err)
	e.clock.Advance(time.Microsecond)
	return res
}

func TestCreatePassEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	res := e.create(t, "Asha Rao")
	assert.Equal(t, int64(1), res.Pass.ID)
	assert.Regexp(t, `^[A-Z0-9]+-\d{4}-[0-9A-F]{6}$`, res.Pass.SerialNumber)
	assert.Equal(t, model.StatusValid, res.Pass.Status)
	assert.Equal(t, res.Pass.SerialNumber+".png", res.Filename)
	_, err := os.Stat(filepath.Join(e.passesDir, res.Filename))
	require.NoError(t, err)

	v, err := e.svc.Scan(ctx, res.Pass.SerialNumber)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, MsgEntryGranted, v.Message)

	v, err = e.svc.Scan(ctx, res.Pass.SerialNumber)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, MsgAlreadyScanned, v.Message)

	require.Len(t, e.pub.issued, 1)
	assert.Equal(t, res.Pass.SerialNumber, e.pub.issued[0].SerialNumber)
	require.Len(t, e.pub.scanned, 1)
}

func TestIDsIncreaseAndSerialsStayUniqueAcrossRestarts(t *testing.T) {
	e := newEnv(t)
	seen := map[string]bool{}
	var last int64
	for round := 0; round < 3; round++ {
		for i := 0; i < 3; i++ {
			res := e.create(t, "Same Name")
			assert.Greater(t, res.Pass.ID, last)
			last = res.Pass.ID
			assert.False(t, seen[res.Pass.SerialNumber], "serial reused: %s", res.Pass.SerialNumber)
			seen[res.Pass.SerialNumber] = true
		}
		e.reopen(t)
	}
	assert.Equal(t, int64(9), last)
}

func TestVerifyIsReadOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.create(t, "Asha Rao")

	for i := 0; i < 5; i++ {
		v, err := e.svc.Verify(ctx, res.Pass.SerialNumber)
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.Equal(t, MsgEntryGranted, v.Message)
	}
	scan, err := e.store.GetScan(ctx, res.Pass.SerialNumber)
	require.NoError(t, err)
	assert.Nil(t, scan)
}

func TestScanFirstCallWins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res := e.create(t, "Asha Rao")
	firstAt := e.clock.Now()

	v, err := e.svc.Scan(ctx, res.Pass.SerialNumber)
	require.NoError(t, err)
	require.True(t, v.Valid)

	e.clock.Advance(time.Hour)
	v, err = e.svc.Scan(ctx, res.Pass.SerialNumber)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, MsgAlreadyScanned, v.Message)
	require.NotNil(t, v.ScannedAt)
	assert.True(t, firstAt.Equal(*v.ScannedAt))
	require.NotNil(t, v.Details)
	assert.Equal(t, "Asha Rao", v.Details.AttendeeName)

	st, err := e.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Scanned)
}

func TestScanUnknownSerial(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	v, err := e.svc.Scan(ctx, "NYE2025-9999-000000")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, MsgNotFound, v.Message)
	assert.Nil(t, v.Details)

	st, err := e.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Scanned)
	assert.Empty(t, e.pub.scanned)
}

func TestCancelledPassIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.store.AddPass(ctx, model.Pass{ID: 1, SerialNumber: "NYE2025-0001-ABCDEF", Status: model.StatusCancelled}))

	v, err := e.svc.Scan(ctx, "NYE2025-0001-ABCDEF")
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, MsgCancelled, v.Message)
	require.NotNil(t, v.Details)

	scan, err := e.store.GetScan(ctx, "NYE2025-0001-ABCDEF")
	require.NoError(t, err)
	assert.Nil(t, scan)
}

func TestConcurrentScansGrantOnce(t *testing.T) {
	e := newEnv(t)
	res := e.create(t, "Asha Rao")

	const scanners = 16
	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.svc.Scan(context.Background(), res.Pass.SerialNumber)
			if err == nil && v.Valid {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func TestStatsAfterFourPassesOneScan(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	st, err := e.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, st)

	var first string
	for i := 0; i < 4; i++ {
		res := e.create(t, "Guest")
		if i == 0 {
			first = res.Pass.SerialNumber
		}
	}
	_, err = e.svc.Scan(ctx, first)
	require.NoError(t, err)

	st, err = e.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 4, Scanned: 1, Pending: 3, AttendanceRate: 25.0}, st)
}

func TestValidationHappensBeforeAllocation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.CreatePass(ctx, CreatePassInput{AttendeeName: "  ", TicketType: "VIP", EventName: "E", EventDate: "D", Venue: "V"})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "name")

	res := e.create(t, "Asha Rao")
	assert.Equal(t, int64(1), res.Pass.ID)
}

type failingRenderer struct{ calls int }

func (f *failingRenderer) CreatePassImage(render.Input) (string, error) {
	f.calls++
	if f.calls == 1 {
		return "", errors.New("disk full")
	}
	return "ok.png", nil
}

func TestRenderFailureLeavesGap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	gen, err := serial.NewGenerator("NYE2025", e.clock.Now)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	svc := NewPassService(e.store, gen, &failingRenderer{}, WithClock(e.clock.Now), WithLogger(logger))

	in := CreatePassInput{AttendeeName: "A", TicketType: "VIP", EventName: "E", EventDate: "D", Venue: "V"}
	_, err = svc.CreatePass(ctx, in)
	require.Error(t, err)

	res, err := svc.CreatePass(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Pass.ID)

	passes, err := svc.ListPasses(ctx)
	require.NoError(t, err)
	assert.Len(t, passes, 1)
}

func TestPublisherErrorsDoNotFailOperations(t *testing.T) {
	e := newEnv(t)
	e.pub.err = errors.New("broker down")
	res := e.create(t, "Asha Rao")
	v, err := e.svc.Scan(context.Background(), res.Pass.SerialNumber)
	require.NoError(t, err)
	assert.True(t, v.Valid)
}

// racingStore records the scan and then reports a duplicate, as a shared
// database does when another process scanned first.
type racingStore struct {
	*repository.JSONStore
}

func (r racingStore) AddScan(ctx context.Context, serial string, at time.Time) (model.Scan, error) {
	if _, err := r.JSONStore.AddScan(ctx, serial, at.Add(-time.Minute)); err != nil {
		return model.Scan{}, err
	}
	return model.Scan{}, repository.ErrAlreadyScanned
}

func TestScanLosesRaceToAnotherProcess(t *testing.T) {
	e := newEnv(t)
	res := e.create(t, "Asha Rao")
	gen, err := serial.NewGenerator("NYE2025", e.clock.Now)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	svc := NewPassService(racingStore{e.store}, gen, &failingRenderer{calls: 1}, WithClock(e.clock.Now), WithLogger(logger))

	v, err := svc.Scan(context.Background(), res.Pass.SerialNumber)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, MsgAlreadyScanned, v.Message)
}

func TestSponsorsAndPoweredBy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.AddSponsor(ctx, "", "logo.png")
	require.ErrorIs(t, err, ErrValidation)

	_, err = e.svc.AddSponsor(ctx, "Acme", "a.png")
	require.NoError(t, err)
	_, err = e.svc.AddSponsor(ctx, "Globex", "g.png")
	require.NoError(t, err)

	n, err := e.svc.RemoveSponsor(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = e.svc.RemoveSponsor(ctx, "Nobody")
	require.NoError(t, err)
	assert.Zero(t, n)

	sponsors, err := e.svc.ListSponsors(ctx)
	require.NoError(t, err)
	require.Len(t, sponsors, 1)
	assert.Equal(t, "Globex", sponsors[0].Name)

	_, err = e.svc.UpdatePoweredBy(ctx, "Contoso", "")
	require.ErrorIs(t, err, ErrValidation)
	pb, err := e.svc.UpdatePoweredBy(ctx, "Contoso", "pb.png")
	require.NoError(t, err)
	assert.Equal(t, "Contoso", pb.Name)
	got, err := e.svc.GetPoweredBy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pb.png", got.Logo)
}
