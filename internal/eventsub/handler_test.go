package eventsub_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tmi/internal/eventsub"
	"github.com/pscheid92/tmi/internal/metrics"
	apperrors "github.com/pscheid92/tmi/internal/platform/errors"
)

const testSecret = "test-webhook-secret-1234567890"

type fakeJoiner struct {
	mu     sync.Mutex
	joined []string
	parted []string
	err    error
}

func (f *fakeJoiner) JoinChannels(_ context.Context, logins ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, logins...)
	return f.err
}

func (f *fakeJoiner) PartChannels(_ context.Context, logins ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parted = append(f.parted, logins...)
	return f.err
}

type failingDeduper struct{}

func (failingDeduper) Seen(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis circuit breaker open")
}

func sign(secret, id, timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id + timestamp + body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

type delivery struct {
	id        string
	msgType   string
	subType   string
	timestamp time.Time
	body      string
	secret    string
}

func (d delivery) request() *http.Request {
	ts := d.timestamp.UTC().Format(time.RFC3339Nano)
	secret := d.secret
	if secret == "" {
		secret = testSecret
	}
	req := httptest.NewRequest(http.MethodPost, "/eventsub", strings.NewReader(d.body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventsub.HeaderMessageID, d.id)
	req.Header.Set(eventsub.HeaderMessageTimestamp, ts)
	req.Header.Set(eventsub.HeaderMessageSignature, sign(secret, d.id, ts, d.body))
	req.Header.Set(eventsub.HeaderMessageType, d.msgType)
	req.Header.Set(eventsub.HeaderSubscriptionType, d.subType)
	return req
}

func streamBody(t *testing.T, subType, login string) string {
	t.Helper()
	event := map[string]any{
		"broadcaster_user_id":    "1337",
		"broadcaster_user_login": login,
		"broadcaster_user_name":  login,
	}
	if subType == "stream.online" {
		event["id"] = "9001"
		event["type"] = "live"
		event["started_at"] = "2026-10-14T10:11:12.123Z"
	}
	b, err := json.Marshal(map[string]any{
		"subscription": map[string]any{
			"id":        "sub-1",
			"type":      subType,
			"version":   "1",
			"status":    "enabled",
			"condition": map[string]string{"broadcaster_user_id": "1337"},
			"transport": map[string]string{"method": "webhook", "callback": "https://example.com/eventsub"},
		},
		"event": event,
	})
	require.NoError(t, err)
	return string(b)
}

type fixture struct {
	handler *eventsub.Handler
	joiner  *fakeJoiner
	clock   *clockwork.FakeClock
	echo    *echo.Echo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))
	joiner := &fakeJoiner{}
	return &fixture{
		handler: eventsub.NewHandler(testSecret, eventsub.NewMemoryDeduper(clock), joiner, clock),
		joiner:  joiner,
		clock:   clock,
		echo:    echo.New(),
	}
}

func (f *fixture) serve(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	err := apperrors.Middleware()(f.handler.HandleEventSub)(f.echo.NewContext(req, rec))
	require.NoError(t, err)
	return rec
}

func (f *fixture) notification(t *testing.T, id, subType, login string) delivery {
	return delivery{
		id:        id,
		msgType:   eventsub.MessageTypeNotification,
		subType:   subType,
		timestamp: f.clock.Now(),
		body:      streamBody(t, subType, login),
	}
}

func TestHandleEventSub_StreamOnlineJoins(t *testing.T) {
	f := newFixture(t)
	metrics.EventSubNotifications.Reset()

	rec := f.serve(t, f.notification(t, "msg-1", "stream.online", "ronni").request())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ronni"}, f.joiner.joined)
	assert.Empty(t, f.joiner.parted)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventSubNotifications.WithLabelValues("stream.online", "join")))
}

func TestHandleEventSub_StreamOfflineParts(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, f.notification(t, "msg-2", "stream.offline", "ronni").request())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ronni"}, f.joiner.parted)
	assert.Empty(t, f.joiner.joined)
}

func TestHandleEventSub_VerificationEchoesChallenge(t *testing.T) {
	f := newFixture(t)
	body := `{"challenge":"pogchamp-kappa-360noscope-vohiyo","subscription":{"id":"sub-1","type":"stream.online","version":"1","status":"webhook_callback_verification_pending"}}`

	rec := f.serve(t, delivery{
		id:        "msg-3",
		msgType:   eventsub.MessageTypeVerification,
		subType:   "stream.online",
		timestamp: f.clock.Now(),
		body:      body,
	}.request())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pogchamp-kappa-360noscope-vohiyo", rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMETextPlain))
}

func TestHandleEventSub_InvalidSignature(t *testing.T) {
	f := newFixture(t)
	d := f.notification(t, "msg-4", "stream.online", "ronni")
	d.secret = "wrong-secret-value-here!!!!!!!"

	rec := f.serve(t, d.request())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.joiner.joined)
}

func TestHandleEventSub_TamperedBody(t *testing.T) {
	f := newFixture(t)
	req := f.notification(t, "msg-5", "stream.online", "ronni").request()
	req.Body = http.NoBody

	rec := f.serve(t, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleEventSub_ReplayWindow(t *testing.T) {
	f := newFixture(t)

	stale := f.notification(t, "msg-6", "stream.online", "ronni")
	stale.timestamp = f.clock.Now().Add(-eventsub.ReplayWindow - time.Second)
	assert.Equal(t, http.StatusForbidden, f.serve(t, stale.request()).Code)

	edge := f.notification(t, "msg-7", "stream.online", "ronni")
	edge.timestamp = f.clock.Now().Add(-eventsub.ReplayWindow + time.Second)
	assert.Equal(t, http.StatusNoContent, f.serve(t, edge.request()).Code)

	assert.Equal(t, []string{"ronni"}, f.joiner.joined)
}

func TestHandleEventSub_DuplicateDeliveryIgnored(t *testing.T) {
	f := newFixture(t)
	metrics.EventSubNotifications.Reset()
	d := f.notification(t, "msg-8", "stream.online", "ronni")

	assert.Equal(t, http.StatusNoContent, f.serve(t, d.request()).Code)
	assert.Equal(t, http.StatusNoContent, f.serve(t, d.request()).Code)

	assert.Equal(t, []string{"ronni"}, f.joiner.joined)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventSubNotifications.WithLabelValues("stream.online", "duplicate")))
}

func TestHandleEventSub_DedupFailureFailsOpen(t *testing.T) {
	f := newFixture(t)
	f.handler = eventsub.NewHandler(testSecret, failingDeduper{}, f.joiner, f.clock)

	rec := f.serve(t, f.notification(t, "msg-9", "stream.online", "ronni").request())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"ronni"}, f.joiner.joined)
}

func TestHandleEventSub_RevocationAcknowledged(t *testing.T) {
	f := newFixture(t)
	d := f.notification(t, "msg-10", "stream.online", "ronni")
	d.msgType = eventsub.MessageTypeRevocation

	rec := f.serve(t, d.request())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.joiner.joined)
}

func TestHandleEventSub_UnhandledSubscriptionType(t *testing.T) {
	f := newFixture(t)

	rec := f.serve(t, f.notification(t, "msg-11", "channel.follow", "ronni").request())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, f.joiner.joined)
	assert.Empty(t, f.joiner.parted)
}

func TestHandleEventSub_JoinFailureStillAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.joiner.err = errors.New("client not running")
	metrics.EventSubNotifications.Reset()

	rec := f.serve(t, f.notification(t, "msg-12", "stream.online", "ronni").request())

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventSubNotifications.WithLabelValues("stream.online", "failed")))
}

func TestHandleEventSub_MalformedPayload(t *testing.T) {
	f := newFixture(t)
	d := f.notification(t, "msg-13", "stream.online", "ronni")
	d.body = "{not json"

	rec := f.serve(t, d.request())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
