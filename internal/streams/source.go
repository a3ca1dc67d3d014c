// Package streams provides channel logins from the helix streams API.
package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/nicklaw5/helix/v2"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/metrics"
	"github.com/pscheid92/tmi/internal/platform/retry"
)

const (
	breakerComponent = "helix"
	maxPageSize      = 100
)

var DefaultPolicy = retry.Policy{
	MaxAttempts:      3,
	InitialBackoff:   500 * time.Millisecond,
	RateLimitBackoff: 5 * time.Second,
	MaxBackoff:       30 * time.Second,
}

type Config struct {
	ClientID     string
	ClientSecret string
	// AppAccessToken skips the client credentials grant when set.
	AppAccessToken string
	// BaseURL overrides the helix API base URL.
	BaseURL      string
	UserAgent    string
	HTTPClient   *http.Client
	Policy       retry.Policy
	BreakerDelay time.Duration
}

// StatusError is a helix reply with a non-2xx status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("helix status %d: %s", e.StatusCode, e.Message)
}

// Source lists the logins of the most viewed live channels.
type Source struct {
	mu      sync.Mutex
	client  *helix.Client
	cb      circuitbreaker.CircuitBreaker[any]
	policy  retry.Policy
	hasAuth bool
}

var _ domain.ChannelSource = (*Source)(nil)

func New(cfg Config) (*Source, error) {
	opts := &helix.Options{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		AppAccessToken: cfg.AppAccessToken,
		APIBaseURL:     cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	client, err := helix.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	policy := cfg.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultPolicy
	}
	delay := cfg.BreakerDelay
	if delay <= 0 {
		delay = 30 * time.Second
	}

	return &Source{
		client:  client,
		cb:      newBreaker(delay),
		policy:  policy,
		hasAuth: cfg.AppAccessToken != "",
	}, nil
}

// newBreaker opens at a 60% failure rate over at least 5 calls in 10s.
func newBreaker(delay time.Duration) circuitbreaker.CircuitBreaker[any] {
	return circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", breakerComponent,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerStateChanges.WithLabelValues(breakerComponent, e.NewState.String()).Inc()
			metrics.CircuitBreakerState.WithLabelValues(breakerComponent).Set(stateToFloat(e.NewState))
		}).
		Build()
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// TopChannels pages the live streams, most viewed first, and returns up to n logins.
func (s *Source) TopChannels(ctx context.Context, n int) ([]string, error) {
	logins := make([]string, 0, n)
	cursor := ""
	for len(logins) < n {
		first := min(maxPageSize, n-len(logins))
		page, err := retry.Do(ctx, s.policy, classify, func() (streamsPage, error) {
			return s.page(cursor, first)
		})
		if err != nil {
			return logins, fmt.Errorf("list top channels: %w", err)
		}
		logins = append(logins, page.logins...)
		if page.cursor == "" || len(page.logins) == 0 {
			break
		}
		cursor = page.cursor
	}
	return logins, nil
}

type streamsPage struct {
	logins []string
	cursor string
}

func (s *Source) page(cursor string, first int) (streamsPage, error) {
	if !s.cb.TryAcquirePermit() {
		metrics.ChannelSourceRequests.WithLabelValues("rejected").Inc()
		return streamsPage{}, fmt.Errorf("helix circuit breaker open: %w", circuitbreaker.ErrOpen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(); err != nil {
		s.cb.RecordError(err)
		return streamsPage{}, err
	}

	resp, err := s.client.GetStreams(&helix.StreamsParams{First: first, After: cursor, Type: "live"})
	if err != nil {
		metrics.ChannelSourceRequests.WithLabelValues("error").Inc()
		s.cb.RecordError(err)
		return streamsPage{}, fmt.Errorf("get streams: %w", err)
	}
	metrics.ChannelSourceRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			s.cb.RecordError(statusErr)
		} else {
			s.cb.RecordSuccess()
		}
		if resp.StatusCode == http.StatusUnauthorized {
			s.hasAuth = false
		}
		return streamsPage{}, statusErr
	}
	s.cb.RecordSuccess()

	page := streamsPage{cursor: resp.Data.Pagination.Cursor}
	for _, stream := range resp.Data.Streams {
		page.logins = append(page.logins, stream.UserLogin)
	}
	return page, nil
}

// authorize fetches an app access token when none is set. Callers hold mu.
func (s *Source) authorize() error {
	if s.hasAuth {
		return nil
	}
	resp, err := s.client.RequestAppAccessToken(nil)
	if err != nil {
		return fmt.Errorf("request app access token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode, Message: resp.ErrorMessage}
	}
	s.client.SetAppAccessToken(resp.Data.AccessToken)
	s.hasAuth = true
	return nil
}

func classify(err error) retry.Action {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return retry.Stop
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return retry.Retry
	}
	switch {
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return retry.After
	case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode >= http.StatusInternalServerError:
		return retry.Retry
	default:
		return retry.Stop
	}
}
