package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/stellar/go/support/log"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

type sessionState int

const (
	stateInitial sessionState = iota
	statePolling
	stateStopped
)

// pollFunc runs one poll cycle and reports whether the next one should be
// scheduled. It is only ever called from the session goroutine.
type pollFunc func(ctx context.Context) (reschedule bool)

// session is the state of one watch: its lifecycle, what it reported and
// what it chose to ignore on the first poll. It is created per watch call
// and torn down by stop.
type session struct {
	mu      sync.Mutex
	state   sessionState
	seen    map[string]walletsdk.Transaction
	ignored map[string]walletsdk.Transaction

	logger   *log.Entry
	interval time.Duration
	poll     pollFunc

	cancel    context.CancelFunc
	refreshCh chan struct{}
	done      chan struct{}
}

func newSession(logger *log.Entry, interval time.Duration, poll pollFunc) *session {
	return &session{
		state:     stateInitial,
		seen:      make(map[string]walletsdk.Transaction),
		ignored:   make(map[string]walletsdk.Transaction),
		logger:    logger,
		interval:  interval,
		poll:      poll,
		refreshCh: make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (s *session) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	context.AfterFunc(ctx, s.stop)
	go s.run(ctx)
}

// run owns the session's only timer. A poll that does not ask to be
// rescheduled leaves the loop idle until refresh or stop.
func (s *session) run(ctx context.Context) {
	defer close(s.done)
	defer s.stop()

	timer := time.NewTimer(s.interval)
	timer.Stop()

	reschedule := s.poll(ctx)
	for {
		if reschedule {
			timer.Reset(s.interval)
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.refreshCh:
			timer.Stop()
		case <-timer.C:
		}

		if !s.active() {
			return
		}
		reschedule = s.poll(ctx)
	}
}

func (s *session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != stateStopped
}

// emit runs a caller callback unless the session was stopped meanwhile. A
// stop that lands after the check does not cancel the callback.
func (s *session) emit(callback func()) {
	if !s.active() {
		return
	}
	callback()
}

func (s *session) refresh() {
	if !s.active() {
		return
	}
	select {
	case s.refreshCh <- struct{}{}:
	default:
		// a refresh is already pending
	}
}

func (s *session) stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	s.seen = make(map[string]walletsdk.Transaction)
	s.ignored = make(map[string]walletsdk.Transaction)
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Debug("watch stopped")
}
