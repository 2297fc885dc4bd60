package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/kozaktomas/face-registry/internal/constants"
	"github.com/kozaktomas/face-registry/internal/directory"
	"go.uber.org/zap"
)

// session is the per-kind guard state. The token survives release so late
// results can still be matched against the most recent session.
//
// orphan is the token of the previous session when its guard expired before a result
// arrived; that capture may still deliver, possibly without a token.
type session struct {
	status    Status
	token     string
	startedAt time.Time
	releaseAt time.Time
	timer     clockwork.Timer
	delivered bool
	expired   bool
	orphan    string
}

// held reports whether the guard blocks a new trigger.
func (s *session) held() bool {
	return s.status == StatusPending || s.status == StatusCompleted || s.status == StatusConflict
}

func (s *session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Controller is the single-flight guard for capture sessions, one independent guard per Kind.
type Controller struct {
	launcher     Launcher
	clock        clockwork.Clock
	guard        time.Duration
	callbacks    map[Kind]string
	requireToken bool
	logger       *zap.Logger

	mu       sync.Mutex
	sessions map[Kind]*session

	events EventBroadcaster
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithGuardDuration sets how long a guard is held before it is forcibly released.
func WithGuardDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.guard = d
		}
	}
}

// WithCallbackURL sets the URL the capture process should redirect to for kind.
func WithCallbackURL(kind Kind, url string) Option {
	return func(c *Controller) { c.callbacks[kind] = url }
}

// WithRequireToken rejects delivered results that carry no session token.
func WithRequireToken(require bool) Option {
	return func(c *Controller) { c.requireToken = require }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a controller that starts captures through launcher.
func NewController(launcher Launcher, opts ...Option) *Controller {
	c := &Controller{
		launcher:  launcher,
		clock:     clockwork.NewRealClock(),
		guard:     constants.DefaultGuardDuration,
		callbacks: make(map[Kind]string),
		logger:    zap.NewNop(),
		sessions:  make(map[Kind]*session, len(Kinds)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("capture")
	for _, k := range Kinds {
		c.sessions[k] = &session{status: StatusIdle}
	}
	return c
}

// GuardDuration returns the configured guard duration.
func (c *Controller) GuardDuration() time.Duration {
	return c.guard
}

// Trigger starts a capture of the given kind. While the guard for kind is held the call
// returns ResultAlreadyInProgress without contacting the launcher. Otherwise exactly one
// launcher call is made and the guard timer is scheduled.
//
// The returned error wraps directory.ErrConflict when the capture process reports it is busy,
// or the launcher error on any other failure; the handle is valid in every case.
func (c *Controller) Trigger(ctx context.Context, kind Kind) (SessionHandle, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return SessionHandle{Kind: kind, Status: StatusIdle, Result: ResultFailed, Message: err.Error()}, err
	}

	c.mu.Lock()
	s := c.sessions[kind]
	if s.held() {
		h := c.handle(kind, s)
		c.mu.Unlock()
		h.Result = ResultAlreadyInProgress
		h.Message = NoticeInProgress
		c.logger.Info("capture already in progress", zap.String("kind", string(kind)))
		return h, nil
	}

	var orphan string
	if s.expired && !s.delivered {
		orphan = s.token
	}
	token := uuid.NewString()
	now := c.clock.Now()
	s.stopTimer()
	*s = session{
		status:    StatusPending,
		token:     token,
		startedAt: now,
		releaseAt: now.Add(c.guard),
		orphan:    orphan,
	}
	s.timer = c.clock.AfterFunc(c.guard, func() { c.expire(kind, token) })
	c.mu.Unlock()

	c.publish(kind, StatusPending, token, "")
	c.logger.Info("capture triggered", zap.String("kind", string(kind)), zap.String("session", token))

	err := c.launcher.Start(ctx, StartRequest{Kind: kind, Token: token, CallbackURL: c.callbacks[kind]})

	c.mu.Lock()
	if s.token != token || s.status != StatusPending {
		// The guard expired while the launcher call was in flight.
		h := c.handle(kind, s)
		c.mu.Unlock()
		c.logger.Warn("launcher answered after guard release",
			zap.String("kind", string(kind)), zap.String("session", token), zap.Error(err))
		if err != nil {
			h.Result = ResultFailed
			return h, fmt.Errorf("start %s capture: %w", kind, err)
		}
		h.Result = ResultStarted
		h.Message = NoticeStarted
		return h, nil
	}

	var (
		result  Result
		message string
		retErr  error
	)
	switch {
	case err == nil:
		s.status = StatusCompleted
		result, message = ResultStarted, NoticeStarted
	case errors.Is(err, directory.ErrConflict):
		s.status = StatusConflict
		result, message = ResultConflict, NoticeInProgress
		retErr = fmt.Errorf("start %s capture: %w", kind, err)
	default:
		s.stopTimer()
		s.status = StatusIdle
		result, message = ResultFailed, err.Error()
		retErr = fmt.Errorf("start %s capture: %w", kind, err)
	}
	launched := s.status

	// A result delivered while the launcher call was in flight releases the guard now.
	released := s.delivered && s.held()
	if released {
		s.stopTimer()
		s.status = StatusIdle
	}
	h := c.handle(kind, s)
	c.mu.Unlock()

	h.Result = result
	h.Message = message
	c.publish(kind, launched, token, message)
	if released {
		c.publish(kind, StatusIdle, token, NoticeDelivered)
	}

	if retErr != nil {
		c.logger.Warn("capture trigger failed",
			zap.String("kind", string(kind)), zap.String("result", string(result)), zap.Error(err))
	} else {
		c.logger.Info("capture started", zap.String("kind", string(kind)), zap.String("session", token))
	}
	return h, retErr
}

// expire is the guard timer callback. It only acts on the session that scheduled it.
func (c *Controller) expire(kind Kind, token string) {
	c.mu.Lock()
	s := c.sessions[kind]
	if s.token != token || !s.held() {
		c.mu.Unlock()
		return
	}
	s.timer = nil
	s.status = StatusIdle
	s.expired = true
	c.mu.Unlock()

	c.logger.Info("capture guard expired", zap.String("kind", string(kind)), zap.String("session", token))
	c.publish(kind, StatusTimedOut, token, NoticeTimedOut)
	c.publish(kind, StatusIdle, token, "")
}

// Accept fences a delivered result. A result is accepted once, and only when its token
// belongs to the most recent session of kind. Accepting releases a held guard, except
// while the launcher call is still in flight: then the delivery is recorded and Trigger
// releases the guard once the launcher returns.
//
// Results without a token are accepted unless the controller requires tokens. They can
// only be attributed by order: when the previous session expired without a result, the
// first tokenless result is taken to be that late one and discarded.
func (c *Controller) Accept(kind Kind, token string) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}

	c.mu.Lock()
	s := c.sessions[kind]

	if token == "" {
		if c.requireToken {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s result carries no session token", ErrStaleResult, kind)
		}
		if s.token == "" {
			// No capture started yet; nothing to fence against.
			c.mu.Unlock()
			c.logger.Warn("accepting result without any capture session", zap.String("kind", string(kind)))
			return nil
		}
		if s.orphan != "" {
			orphan := s.orphan
			s.orphan = ""
			c.mu.Unlock()
			c.logger.Warn("discarding tokenless result as the late result of an expired session",
				zap.String("kind", string(kind)), zap.String("session", orphan))
			return fmt.Errorf("%w: %s result without token attributed to expired session %s", ErrStaleResult, kind, orphan)
		}
		c.logger.Warn("accepting result without session token", zap.String("kind", string(kind)))
	} else if token != s.token {
		if token == s.orphan {
			s.orphan = ""
		}
		c.mu.Unlock()
		c.logger.Warn("rejecting result from superseded session",
			zap.String("kind", string(kind)), zap.String("session", token))
		return fmt.Errorf("%w: %s session %s is not the latest", ErrStaleResult, kind, token)
	}

	if s.delivered {
		current := s.token
		c.mu.Unlock()
		return fmt.Errorf("%w: %s session %s already delivered a result", ErrStaleResult, kind, current)
	}
	s.delivered = true

	released := s.held() && s.status != StatusPending
	if released {
		s.stopTimer()
		s.status = StatusIdle
	}
	current := s.token
	c.mu.Unlock()

	if released {
		c.publish(kind, StatusIdle, current, NoticeDelivered)
	}
	return nil
}

// Status returns the current session state for kind.
func (c *Controller) Status(kind Kind) SessionHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[kind]
	if !ok {
		return SessionHandle{Kind: kind, Status: StatusIdle}
	}
	return c.handle(kind, s)
}

// Subscribe registers a listener for session events.
func (c *Controller) Subscribe() chan Event {
	return c.events.AddListener()
}

// Unsubscribe removes a listener registered with Subscribe.
func (c *Controller) Unsubscribe(ch chan Event) {
	c.events.RemoveListener(ch)
}

// Close stops all guard timers and closes event listeners.
func (c *Controller) Close() {
	c.mu.Lock()
	for _, s := range c.sessions {
		s.stopTimer()
	}
	c.mu.Unlock()
	c.events.CloseAll()
}

// handle must be called with c.mu held.
func (c *Controller) handle(kind Kind, s *session) SessionHandle {
	h := SessionHandle{Kind: kind, Status: s.status}
	if s.status != StatusIdle {
		h.Token = s.token
		h.StartedAt = s.startedAt
		h.ReleaseAt = s.releaseAt
	}
	return h
}

func (c *Controller) publish(kind Kind, status Status, token, message string) {
	c.events.SendEvent(Event{
		Kind:    kind,
		Status:  status,
		Token:   token,
		Message: message,
		At:      c.clock.Now(),
	})
}
