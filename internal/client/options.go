package client

import (
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/pscheid92/tmi/internal/accumulator"
)

const (
	// DefaultMessageRate is the number of chat messages allowed per messageWindow.
	DefaultMessageRate = 20
	// DefaultJoinRate is the number of channel joins allowed per joinWindow.
	DefaultJoinRate = 20

	messageWindow = 30 * time.Second
	joinWindow    = 10 * time.Second
	maxJoinBatch  = 20
)

// Executor runs a dispatched handler task. It must not block the caller.
type Executor func(task func())

func goExecutor(task func()) { go task() }

type options struct {
	clock               clockwork.Clock
	accumulationTimeout time.Duration
	messageRate         int
	joinRate            int
	executor            Executor
}

type Option func(*options)

func WithClock(clock clockwork.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithAccumulationTimeout bounds how long a joining channel waits for its
// describing replies before it is promoted with partial data.
func WithAccumulationTimeout(d time.Duration) Option {
	return func(o *options) { o.accumulationTimeout = d }
}

// WithMessageRate sets the chat messages allowed per 30 seconds.
func WithMessageRate(n int) Option {
	return func(o *options) { o.messageRate = n }
}

// WithJoinRate sets the channel joins allowed per 10 seconds.
func WithJoinRate(n int) Option {
	return func(o *options) { o.joinRate = n }
}

// WithExecutor replaces the goroutine-per-task handler executor.
func WithExecutor(e Executor) Option {
	return func(o *options) { o.executor = e }
}

func defaultOptions() options {
	return options{
		clock:               clockwork.NewRealClock(),
		accumulationTimeout: accumulator.DefaultTimeout,
		messageRate:         DefaultMessageRate,
		joinRate:            DefaultJoinRate,
		executor:            goExecutor,
	}
}

func newLimiter(n int, window time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(float64(n)/window.Seconds()), n)
}
