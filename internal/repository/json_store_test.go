package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-pass-system/internal/model"
)

var defaultPoweredBy = model.PoweredBy{Name: "rave.live", Logo: "rave_logo.png"}

func openTestStore(t *testing.T) (*JSONStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passes_database.json")
	s, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenCreatesDocumentWithDefaults(t *testing.T) {
	_, path := openTestStore(t)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	for _, key := range []string{"passes", "scanned", "sponsors", "powered_by", "next_serial"} {
		assert.Contains(t, doc, key)
	}
	assert.JSONEq(t, `[]`, string(doc["passes"]))
	assert.JSONEq(t, `1`, string(doc["next_serial"]))
	assert.JSONEq(t, `{"name":"rave.live","logo":"rave_logo.png"}`, string(doc["powered_by"]))
}

func TestOpenFillsMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"passes":[{"id":7,"serial_number":"X-0007-ABCDEF","status":"valid"}]}`), 0o644))

	s, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	ctx := context.Background()

	pb, err := s.GetPoweredBy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rave.live", pb.Name)

	sponsors, err := s.ListSponsors(ctx)
	require.NoError(t, err)
	assert.Empty(t, sponsors)

	n, err := s.NextSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n, "counter must move past persisted ids")
}

func TestOpenReadsZonelessTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passes_database.json")
	doc := `{
  "passes": [{"id": 1, "serial_number": "NYE2025-0001-ABC123", "attendee_name": "Asha Rao",
    "ticket_type": "VIP", "event_name": "SAVORA", "event_date": "DECEMBER 31ST",
    "venue": "Hall", "issued_at": "2025-12-31T20:00:00.123456", "status": "valid"}],
  "scanned": [{"serial_number": "NYE2025-0001-ABC123", "scanned_at": "2025-12-31T21:00:00.000001"}],
  "sponsors": [{"name": "Acme", "logo": "sponsor_20251230120000.png", "added_at": "2025-12-30T12:00:00"}],
  "powered_by": {"name": "rave.live", "logo": "rave_logo.png", "updated_at": "2025-12-29T09:30:00.5"},
  "next_serial": 2
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	s, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	p, err := s.GetPassBySerial(ctx, "NYE2025-0001-ABC123")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, time.Date(2025, 12, 31, 20, 0, 0, 123_456_000, time.Local).Equal(p.IssuedAt))

	scan, err := s.GetScan(ctx, "NYE2025-0001-ABC123")
	require.NoError(t, err)
	require.NotNil(t, scan)
	assert.True(t, time.Date(2025, 12, 31, 21, 0, 0, 1000, time.Local).Equal(scan.ScannedAt))

	sponsors, err := s.ListSponsors(ctx)
	require.NoError(t, err)
	require.Len(t, sponsors, 1)
	assert.Equal(t, 30, sponsors[0].AddedAt.Day())

	pb, err := s.GetPoweredBy(ctx)
	require.NoError(t, err)
	require.NotNil(t, pb.UpdatedAt)

	n, err := s.NextSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The rewritten document must load again.
	require.NoError(t, s.Close())
	s2, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })
	p2, err := s2.GetPassBySerial(ctx, "NYE2025-0001-ABC123")
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.True(t, p.IssuedAt.Equal(p2.IssuedAt))
}

func TestOpenRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))
	_, err := OpenJSONStore(path, defaultPoweredBy)
	assert.Error(t, err)
}

func TestNextSerialSurvivesRestart(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	for want := int64(1); want <= 3; want++ {
		got, err := s.NextSerial(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, s.Close())

	reopened, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	got, err := reopened.NextSerial(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)
}

func TestNextSerialConcurrent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.NextSerial(ctx)
			if err == nil {
				results <- n
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for n := range results {
		assert.False(t, seen[n], "duplicate serial %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}

func TestPassAndScanLookups(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	issued := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	p := model.Pass{ID: 1, SerialNumber: "NYE2025-0001-ABC123", AttendeeName: "Asha Rao", TicketType: "VIP", IssuedAt: issued, Status: model.StatusValid}
	require.NoError(t, s.AddPass(ctx, p))

	got, err := s.GetPassBySerial(ctx, p.SerialNumber)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Asha Rao", got.AttendeeName)

	missing, err := s.GetPassBySerial(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	scan, err := s.GetScan(ctx, p.SerialNumber)
	require.NoError(t, err)
	assert.Nil(t, scan)

	at := issued.Add(time.Hour)
	_, err = s.AddScan(ctx, p.SerialNumber, at)
	require.NoError(t, err)

	reopened, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	scan, err = reopened.GetScan(ctx, p.SerialNumber)
	require.NoError(t, err)
	require.NotNil(t, scan)
	assert.True(t, at.Equal(scan.ScannedAt))
}

func TestRemoveSponsorByName(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, sp := range []model.Sponsor{
		{Name: "Acme", Logo: "a1.png", AddedAt: now},
		{Name: "Globex", Logo: "g.png", AddedAt: now},
		{Name: "Acme", Logo: "a2.png", AddedAt: now},
	} {
		require.NoError(t, s.AddSponsor(ctx, sp))
	}

	removed, err := s.RemoveSponsor(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	left, err := s.ListSponsors(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "Globex", left[0].Name)

	removed, err = s.RemoveSponsor(ctx, "Initech")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestUpdatePoweredBy(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 12, 2, 0, 0, 0, 0, time.UTC)

	pb, err := s.UpdatePoweredBy(ctx, "Contoso", "powered_by_x.png", at)
	require.NoError(t, err)
	assert.Equal(t, "Contoso", pb.Name)
	require.NotNil(t, pb.UpdatedAt)

	got, err := s.GetPoweredBy(ctx)
	require.NoError(t, err)
	assert.Equal(t, "powered_by_x.png", got.Logo)
}

func TestStats(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{}, st)

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.AddPass(ctx, model.Pass{ID: int64(i), SerialNumber: string(rune('A' + i))}))
	}
	_, err = s.AddScan(ctx, "B", time.Now())
	require.NoError(t, err)

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 4, Scanned: 1, Pending: 3, AttendanceRate: 25.0}, st)
}

func TestWriteFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "db.json")
	s, err := OpenJSONStore(path, defaultPoweredBy)
	require.NoError(t, err)
	ctx := context.Background()

	// Point the store at a directory that does not exist so every save fails.
	s.path = filepath.Join(dir, "missing", "db.json")
	err = s.AddSponsor(ctx, model.Sponsor{Name: "Acme"})
	require.Error(t, err)

	sponsors, err := s.ListSponsors(ctx)
	require.NoError(t, err)
	assert.Empty(t, sponsors)
}

func TestClosedStore(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Close())
	_, err := s.NextSerial(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
