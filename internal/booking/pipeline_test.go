package booking

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"ffb.ae/internal/apperr"
	"ffb.ae/internal/audit"
	"ffb.ae/internal/catalog"
	"ffb.ae/internal/guard"
	"ffb.ae/internal/session"
	"ffb.ae/internal/uploads"
)

// csrfGate applies the same checks as guard.Guard.Protect without the
// login machinery.
type csrfGate struct {
	limiter *guard.Limiter
}

func (g csrfGate) Protect(ctx context.Context, s *session.Session, token, ip string, p guard.Policy) error {
	if !guard.VerifyCSRFToken(s, token) {
		return apperr.Security("test.protect", errors.New("csrf"))
	}
	ok, err := g.limiter.Allow(ctx, ip, p)
	if err != nil {
		return apperr.Persistence("test.protect", err)
	}
	if !ok {
		return apperr.Security("test.protect", errors.New("rate"))
	}
	return nil
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *MemoryStore
	photoDir string
	logs     *observer.ObservedLogs
	session  *session.Session
	token    string
}

func newPipelineFixture(t *testing.T, opts ...Option) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{store: NewMemoryStore(), photoDir: t.TempDir()}
	photos, err := uploads.NewDiskStore(f.photoDir, 1<<10)
	require.NoError(t, err)
	tracker, err := NewTracker(testSecret, time.Hour)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	f.logs = logs

	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithPolicy(guard.Policy{Bucket: "booking", Window: time.Hour, Max: 1000}),
		WithMaxPhotos(2),
	}
	f.pipeline, err = NewPipeline(Deps{
		Gate:    csrfGate{limiter: guard.NewLimiter(guard.NewMemoryCounter())},
		Catalog: catalog.NewStatic(catalog.DefaultServices(), nil, nil),
		Store:   f.store,
		Photos:  photos,
		Tracker: tracker,
		Audit:   audit.New(zap.New(core)),
	}, append(base, opts...)...)
	require.NoError(t, err)

	f.session = newSession(t)
	f.token, err = guard.IssueCSRFToken(f.session)
	require.NoError(t, err)
	return f
}

func (f *pipelineFixture) submission(form Form) Submission {
	return Submission{Session: f.session, CSRFToken: f.token, ClientIP: "192.0.2.10", Form: form}
}

func TestSubmitPricesFromCatalog(t *testing.T) {
	f := newPipelineFixture(t)
	res, err := f.pipeline.Submit(context.Background(), f.submission(validForm()))
	require.NoError(t, err)

	b := res.Booking
	assert.True(t, ValidReference(b.Reference), b.Reference)
	assert.Equal(t, "FFB-20250301-", b.Reference[:13])
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, "433.13", b.Quote.Total.StringFixed(2))
	assert.Equal(t, "Electrical", b.ServiceName)

	stored, err := f.store.FindByReference(context.Background(), b.Reference)
	require.NoError(t, err)
	assert.Equal(t, "433.13", stored.Quote.Total.StringFixed(2))

	ref, err := f.pipeline.Track(context.Background(), res.TrackingToken)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, ref.Reference)

	assert.Equal(t, 1, f.logs.FilterField(zap.String("event", audit.BookingCreated)).Len())
}

func TestSubmitIgnoresTamperedPrice(t *testing.T) {
	f := newPipelineFixture(t)
	v := validValues()
	v.Set("total_price", "1.00")
	v.Set("hourly_rate", "0.01")
	res, err := f.pipeline.Submit(context.Background(), f.submission(FormFromValues(v.Get)))
	require.NoError(t, err)
	assert.Equal(t, "433.13", res.Booking.Quote.Total.StringFixed(2))
}

func TestSubmitRejectsForeignCSRFToken(t *testing.T) {
	f := newPipelineFixture(t)
	other := newSession(t)
	otherToken, err := guard.IssueCSRFToken(other)
	require.NoError(t, err)

	sub := f.submission(validForm())
	sub.CSRFToken = otherToken
	_, err = f.pipeline.Submit(context.Background(), sub)
	assert.True(t, apperr.IsKind(err, apperr.KindSecurity))
	assert.Zero(t, storeLen(t, f.store))
}

func TestSubmitRejectsUnknownUrgency(t *testing.T) {
	f := newPipelineFixture(t)
	for _, urgency := range []string{"", "asap"} {
		form := validForm()
		form.Urgency = urgency
		_, err := f.pipeline.Submit(context.Background(), f.submission(form))
		assert.Contains(t, fieldsOf(t, err), "urgency")
	}
	assert.Zero(t, storeLen(t, f.store))
}

func TestSubmitUnknownServiceDoesNotEchoID(t *testing.T) {
	f := newPipelineFixture(t)
	form := validForm()
	form.ServiceID = "987654"
	_, err := f.pipeline.Submit(context.Background(), f.submission(form))
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.NotContains(t, e.Message, "987654")
}

func TestSubmitConcurrentReferencesAreUnique(t *testing.T) {
	f := newPipelineFixture(t)
	const n = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		refs = make(map[string]struct{})
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.Submit(context.Background(), f.submission(validForm()))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			refs[res.Booking.Reference] = struct{}{}
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	assert.Len(t, refs, n)
	assert.Equal(t, n, storeLen(t, f.store))
}

// cycleReader repeats a fixed byte pattern.
type cycleReader struct {
	pattern []byte
	pos     int
}

func (r *cycleReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.pattern[r.pos%len(r.pattern)]
		r.pos++
	}
	return len(p), nil
}

func TestSubmitRetriesReferenceCollision(t *testing.T) {
	// First two draws produce AAAAAA, the third BBBBBB.
	entropy := &cycleReader{pattern: []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1}}
	f := newPipelineFixture(t, WithEntropy(entropy))
	require.NoError(t, f.store.Create(context.Background(), &Booking{Reference: "FFB-20250301-AAAAAA", Status: StatusPending}))

	res, err := f.pipeline.Submit(context.Background(), f.submission(validForm()))
	require.NoError(t, err)
	assert.Equal(t, "FFB-20250301-BBBBBB", res.Booking.Reference)
}

func TestSubmitGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newPipelineFixture(t, WithEntropy(&cycleReader{pattern: []byte{0}}), WithReferenceAttempts(3))
	require.NoError(t, f.store.Create(context.Background(), &Booking{Reference: "FFB-20250301-AAAAAA", Status: StatusPending}))

	_, err := f.pipeline.Submit(context.Background(), f.submission(validForm()))
	assert.True(t, apperr.IsKind(err, apperr.KindPersistence))
	assert.ErrorIs(t, err, ErrReferenceExhausted)
	e, _ := apperr.As(err)
	assert.NotContains(t, e.Message, "reference")
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func photo(name string, data []byte) Photo {
	return Photo{
		Filename: name,
		Size:     int64(len(data)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

func TestSubmitStoresPhotos(t *testing.T) {
	f := newPipelineFixture(t)
	sub := f.submission(validForm())
	sub.Photos = []Photo{photo("socket.png", pngHeader)}
	res, err := f.pipeline.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.Len(t, res.Booking.Photos, 1)
	assert.True(t, strings.HasSuffix(res.Booking.Photos[0], ".png"))

	entries, err := os.ReadDir(f.photoDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSubmitRejectsBadPhotosAndCleansUp(t *testing.T) {
	f := newPipelineFixture(t)

	sub := f.submission(validForm())
	sub.Photos = []Photo{photo("ok.png", pngHeader), photo("script.png", []byte("#!/bin/sh\necho hi\n"))}
	_, err := f.pipeline.Submit(context.Background(), sub)
	assert.Contains(t, fieldsOf(t, err), "photos")

	sub.Photos = []Photo{photo("huge.png", append(append([]byte{}, pngHeader...), make([]byte, 2048)...))}
	_, err = f.pipeline.Submit(context.Background(), sub)
	assert.Contains(t, fieldsOf(t, err), "photos")

	sub.Photos = []Photo{photo("1.png", pngHeader), photo("2.png", pngHeader), photo("3.png", pngHeader)}
	_, err = f.pipeline.Submit(context.Background(), sub)
	assert.Contains(t, fieldsOf(t, err), "photos")

	entries, err := os.ReadDir(f.photoDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, storeLen(t, f.store))
}

func TestQuote(t *testing.T) {
	f := newPipelineFixture(t)
	svc, q, err := f.pipeline.Quote(context.Background(), 3, "2", "priority")
	require.NoError(t, err)
	assert.Equal(t, int64(3), svc.ID)
	assert.Equal(t, "433.13", q.Total.StringFixed(2))

	_, _, err = f.pipeline.Quote(context.Background(), 3, "0", "urgent")
	fields := fieldsOf(t, err)
	assert.Contains(t, fields, "urgency")
	assert.Contains(t, fields, "estimated_duration")

	_, _, err = f.pipeline.Quote(context.Background(), 77, "1", "regular")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestTrackRejectsBadToken(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.pipeline.Track(context.Background(), "garbage")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestNewPipelineRequiresDeps(t *testing.T) {
	_, err := NewPipeline(Deps{})
	assert.Error(t, err)
}

func storeLen(t *testing.T, s *MemoryStore) int {
	t.Helper()
	list, err := s.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	return len(list)
}
