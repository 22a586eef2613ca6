package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/bryanwahyu/deciphering-cb/internal/application"
	domain "github.com/bryanwahyu/deciphering-cb/internal/domain/analysis"
)

// DefaultMaxInFlight caps concurrent upstream calls when the config leaves it unset.
const DefaultMaxInFlight = 8

// State of one submission. Idle is both the initial state and the state
// re-entered after every terminal one.
type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Service implements the submit use-case.
// Service is safe for concurrent use; submissions from the same session are serialized.
type Service struct {
	client   domain.Client
	clock    application.Clock
	logger   *zap.Logger
	sessions *sessionGate
	slots    *semaphore.Weighted
}

// NewService wires the inference client. maxInFlight <= 0 uses DefaultMaxInFlight.
func NewService(client domain.Client, clock application.Clock, logger *zap.Logger, maxInFlight int) *Service {
	if clock == nil {
		clock = application.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Service{
		client:   client,
		clock:    clock,
		logger:   logger,
		sessions: newSessionGate(),
		slots:    semaphore.NewWeighted(int64(maxInFlight)),
	}
}

// SubmitCommand is one button press.
type SubmitCommand struct {
	SessionID string
	Mode      string
	Payload   string
}

// Outcome is everything the dashboard needs to render one submission.
// It is never stored.
type Outcome struct {
	ID         string
	SessionID  string
	State      State
	Request    domain.Request
	Result     *domain.Result
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
}

// NotSignificant is a successful submission that produced no rows.
func (o Outcome) NotSignificant() bool {
	return o.State == StateSucceeded && !o.Result.Significant()
}

// Submit validates the input, then issues exactly one call to the inference service.
// Validation failures never reach the network.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (Outcome, error) {
	out := Outcome{
		ID:        uuid.New().String(),
		SessionID: cmd.SessionID,
		State:     StateIdle,
		StartedAt: s.clock.Now(),
	}

	req, err := domain.NewRequest(cmd.Mode, cmd.Payload)
	if err != nil {
		return s.fail(out, err)
	}
	out.Request = req

	if !s.sessions.begin(cmd.SessionID) {
		return s.fail(out, domain.ErrSubmissionInFlight)
	}
	defer s.sessions.end(cmd.SessionID)

	if !s.slots.TryAcquire(1) {
		return s.fail(out, domain.ErrBusy)
	}
	defer s.slots.Release(1)

	out.State = StateSubmitted
	res, err := s.client.Analyze(ctx, req)
	if err != nil {
		return s.fail(out, err)
	}

	out.State = StateSucceeded
	out.Result = res
	s.finish(&out)

	s.logger.Info("analysis succeeded",
		zap.String("id", out.ID),
		zap.String("mode", string(req.Mode)),
		zap.Int("rows", len(res.Rows)),
		zap.Bool("significant", res.Significant()),
		zap.Duration("duration", out.Duration),
	)
	return out, nil
}

func (s *Service) fail(out Outcome, err error) (Outcome, error) {
	out.State = StateFailed
	out.Err = err
	s.finish(&out)

	fields := []zap.Field{
		zap.String("id", out.ID),
		zap.String("kind", domain.Kind(err)),
		zap.Duration("duration", out.Duration),
		zap.Error(err),
	}
	if status := domain.StatusOf(err); status != 0 {
		fields = append(fields, zap.Int("upstream_status", status))
	}
	switch domain.Kind(err) {
	case "empty_input", "invalid_mode", "invalid_input", "in_flight", "busy":
		s.logger.Info("analysis rejected", fields...)
	default:
		s.logger.Warn("analysis failed", fields...)
	}
	return out, err
}

func (s *Service) finish(out *Outcome) {
	out.FinishedAt = s.clock.Now()
	out.Duration = out.FinishedAt.Sub(out.StartedAt)
}

// State reports whether a session currently has a submission in flight.
func (s *Service) State(sessionID string) State {
	if s.sessions.active(sessionID) {
		return StateSubmitted
	}
	return StateIdle
}
