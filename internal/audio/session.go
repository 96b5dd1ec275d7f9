package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/emmett/echotap/internal/observe"
)

// State is a capture session's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateCapturing
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// stopTimeout bounds how long Stop waits for the source to quiesce.
const stopTimeout = 500 * time.Millisecond

// Session manages one capture stream's lifecycle: picking a working
// variant on start, reporting which one won, and tearing it down.
// A process typically runs two, one per Kind, feeding one Pipeline.
type Session struct {
	cfg     SourceConfig
	logger  *slog.Logger
	metrics *observe.Metrics

	// fallback builds the candidate list; replaced in tests.
	fallback func(SourceConfig) []Source

	// errs carries errors the session surfaces upward: forwarded
	// source errors plus device-loss teardown reports.
	errs chan error

	mu        sync.Mutex
	state     State
	source    Source
	watchStop chan struct{}
}

// NewSession creates an idle session for the given stream kind.
func NewSession(cfg SourceConfig, metrics *observe.Metrics) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
		cfg.Logger = logger
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	cfg.Metrics = metrics
	return &Session{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		fallback: FallbackOrder,
		errs:     make(chan error, 8),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsActive reports whether the session is currently capturing.
func (s *Session) IsActive() bool {
	return s.State() == StateCapturing
}

// Errors delivers capture errors the session surfaces upward. After a
// device is lost and cannot be reattached, the session tears itself
// down to idle and reports the loss here.
func (s *Session) Errors() <-chan error { return s.errs }

// Source returns the active capture source, or nil when idle.
func (s *Session) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Start walks the variants in fallback order and activates the first
// that starts. Returns the winning method. Calling Start while already
// capturing returns ErrAlreadyCapturing without side effects. When
// every variant fails the error wraps ErrAllSourcesFailed plus each
// variant's failure, and the session is back at idle.
func (s *Session) Start(ctx context.Context) (Method, error) {
	s.mu.Lock()
	switch s.state {
	case StateCapturing:
		s.mu.Unlock()
		return 0, ErrAlreadyCapturing
	case StateStarting, StateStopping:
		state := s.state
		s.mu.Unlock()
		return 0, fmt.Errorf("session is %s", state)
	}
	s.state = StateStarting
	s.mu.Unlock()

	var failures []error
	for _, candidate := range s.fallback(s.cfg) {
		s.logger.Debug("trying capture variant",
			"kind", s.cfg.Kind.String(), "method", candidate.Method().String())
		err := candidate.Start(ctx)
		if err == nil {
			s.metrics.RecordFallbackAttempt(ctx, candidate.Method().String(), "ok")
			s.metrics.ActiveSessions.Add(ctx, 1)
			watchStop := make(chan struct{})
			s.mu.Lock()
			s.source = candidate
			s.state = StateCapturing
			s.watchStop = watchStop
			s.mu.Unlock()
			go s.watch(candidate, watchStop)
			rate, channels := candidate.Format()
			s.logger.Info("capture started",
				"kind", s.cfg.Kind.String(),
				"method", candidate.Method().String(),
				"sample_rate", rate, "channels", channels)
			return candidate.Method(), nil
		}
		s.metrics.RecordFallbackAttempt(ctx, candidate.Method().String(), "failed")
		s.logger.Debug("capture variant failed",
			"kind", s.cfg.Kind.String(),
			"method", candidate.Method().String(), "error", err)
		failures = append(failures, fmt.Errorf("%s: %w", candidate.Method(), err))
	}

	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
	return 0, errors.Join(append([]error{ErrAllSourcesFailed}, failures...)...)
}

// watch drains the source's error channel while the session captures.
// Ordinary errors are forwarded upward; a lost device tears the whole
// session down so the caller sees it go idle instead of capturing over
// a dead source.
func (s *Session) watch(src Source, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case err, ok := <-src.Errors():
			if !ok {
				return
			}
			if errors.Is(err, ErrDeviceLost) {
				s.deviceLost(src, err)
				return
			}
			select {
			case s.errs <- err:
			default:
			}
		}
	}
}

// deviceLost handles a source that died and could not reattach: the
// session stops (transitioning to idle) and the loss is reported on
// the Errors channel.
func (s *Session) deviceLost(src Source, cause error) {
	s.mu.Lock()
	current := s.source == src && s.state == StateCapturing
	s.mu.Unlock()
	if !current {
		return
	}

	s.logger.Warn("capture device lost, stopping session",
		"kind", s.cfg.Kind.String(), "error", cause)
	s.Stop()

	select {
	case s.errs <- fmt.Errorf("%s capture ended: %w", s.cfg.Kind, cause):
	default:
	}
}

// Stop deactivates the session. The state flips away from capturing
// before any teardown so in-flight readers see the session as stopping
// immediately; teardown then waits, bounded, for the source to quiesce.
// Stopping an idle session is a no-op.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != StateCapturing {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	source := s.source
	s.source = nil
	watchStop := s.watchStop
	s.watchStop = nil
	s.mu.Unlock()

	if watchStop != nil {
		close(watchStop)
	}

	done := make(chan error, 1)
	go func() { done <- source.Stop() }()

	var err error
	select {
	case err = <-done:
	case <-time.After(stopTimeout):
		err = fmt.Errorf("%s capture did not stop within %v", s.cfg.Kind, stopTimeout)
	}

	s.metrics.ActiveSessions.Add(context.Background(), -1)
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("capture stop", "kind", s.cfg.Kind.String(), "error", err)
	} else {
		s.logger.Info("capture stopped", "kind", s.cfg.Kind.String())
	}
	return err
}
