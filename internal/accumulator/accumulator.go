package accumulator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tmi/internal/domain"
	"github.com/pscheid92/tmi/internal/irc"
	"github.com/pscheid92/tmi/internal/metrics"
)

const DefaultTimeout = 30 * time.Second

// ReadyFunc receives a materialized channel. complete is false when the
// accumulation timed out and the channel was built from partial data.
type ReadyFunc func(ch *domain.Channel, complete bool)

type Config struct {
	// Login is this client's own login, used for the channel's local state.
	Login string
	// Anonymous connections only ever need ReadyAnon.
	Anonymous bool
	Timeout   time.Duration
	Clock     clockwork.Clock
	OnReady   ReadyFunc
}

// Expiry identifies one accumulation whose timeout fired.
type Expiry struct {
	Login string
	gen   uint64
}

type record struct {
	parts Parts
	gen   uint64
	timer clockwork.Timer
}

// Accumulator collects the replies describing each joining channel and
// promotes a channel once ready. It is owned by a single goroutine: timers
// only post on Expired, and the owner applies them through Expire.
type Accumulator struct {
	cfg     Config
	records map[string]*record
	gen     uint64
	expired chan Expiry
	done    chan struct{}
	once    sync.Once
}

func New(cfg Config) *Accumulator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Accumulator{
		cfg:     cfg,
		records: make(map[string]*record),
		expired: make(chan Expiry, 16),
		done:    make(chan struct{}),
	}
}

// Start begins a fresh accumulation for login, discarding any staged parts
// and cancelling the previous timeout.
func (a *Accumulator) Start(login string) {
	a.discard(login)

	a.gen++
	rec := &record{parts: Parts{Login: login}, gen: a.gen}
	expiry := Expiry{Login: login, gen: rec.gen}
	rec.timer = a.cfg.Clock.AfterFunc(a.cfg.Timeout, func() {
		select {
		case a.expired <- expiry:
		case <-a.done:
		}
	})
	a.records[login] = rec
}

// Add stages msg if it describes a channel and reports whether it did.
// A part for a login without an accumulation starts one.
func (a *Accumulator) Add(msg *irc.Message) bool {
	apply, ok := lookup(msg)
	if !ok {
		return false
	}
	login := msg.Channel()
	if login == "" {
		return false
	}

	rec, ok := a.records[login]
	if !ok {
		a.Start(login)
		rec = a.records[login]
	}
	apply(&rec.parts, msg)

	if rec.parts.Readiness() >= a.target() {
		a.finalize(rec, true)
	}
	return true
}

// Expired delivers timeouts to the owning goroutine.
func (a *Accumulator) Expired() <-chan Expiry {
	return a.expired
}

// Expire finalizes the accumulation with whatever arrived. Expiries of
// accumulations that were restarted or already promoted are ignored.
func (a *Accumulator) Expire(e Expiry) {
	rec, ok := a.records[e.Login]
	if !ok || rec.gen != e.gen {
		return
	}
	metrics.AccumulationTimeouts.Inc()
	slog.Warn("Channel accumulation timed out, using partial data",
		"channel", e.Login, "readiness", rec.parts.Readiness().String())
	a.finalize(rec, false)
}

// Pending reports whether login is being accumulated.
func (a *Accumulator) Pending(login string) bool {
	_, ok := a.records[login]
	return ok
}

// Staged returns the parts staged for login.
func (a *Accumulator) Staged(login string) (Parts, bool) {
	rec, ok := a.records[login]
	if !ok {
		return Parts{}, false
	}
	return rec.parts, true
}

// Abort drops the accumulation for login without promoting it.
func (a *Accumulator) Abort(login string) {
	a.discard(login)
}

// Close stops every timer; pending accumulations are dropped.
func (a *Accumulator) Close() {
	a.once.Do(func() {
		close(a.done)
		for login := range a.records {
			a.discard(login)
		}
	})
}

func (a *Accumulator) target() Readiness {
	if a.cfg.Anonymous {
		return ReadyAnon
	}
	return Ready
}

func (a *Accumulator) finalize(rec *record, complete bool) {
	a.discard(rec.parts.Login)
	ch := rec.parts.Channel(a.cfg.Login)
	if a.cfg.OnReady != nil {
		a.cfg.OnReady(ch, complete)
	}
}

func (a *Accumulator) discard(login string) {
	if rec, ok := a.records[login]; ok {
		rec.timer.Stop()
		delete(a.records, login)
	}
}
