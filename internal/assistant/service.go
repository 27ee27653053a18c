// Package assistant answers shopping questions end to end. It selects the agent or direct
// path, races it against the request deadline and classifies the outcome.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopping-assistant/internal/assistant/catalog"
	"shopping-assistant/internal/assistant/orchestrator"
	"shopping-assistant/internal/assistant/synthesis"
	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/common/metrics"
	"shopping-assistant/internal/common/observability"
)

// Path names the strategy that produced a reply.
type Path string

const (
	PathAgent  Path = "agent"
	PathDirect Path = "direct"
)

// Reply is the result of one Ask.
type Reply struct {
	Response   string              `json:"response"`
	SessionID  string              `json:"sessionId"`
	Path       Path                `json:"path"`
	Outcome    Outcome             `json:"outcome"`
	Iterations int                 `json:"iterations"`
	Fallback   bool                `json:"fallback,omitempty"`
	Steps      []orchestrator.Step `json:"steps,omitempty"`
}

// Runner is the orchestration loop as seen by the service.
type Runner interface {
	Run(ctx context.Context, sessionID, input string) *orchestrator.Session
}

// Querier runs a resolved catalog query.
type Querier interface {
	Query(ctx context.Context, req catalog.Request) (catalog.Result, error)
}

type Service struct {
	cfg         config.AssistantConfig
	loop        Runner
	catalog     Querier
	synthesizer *synthesis.Synthesizer
	obs         *observability.Observability
	logger      logger.Logger
	tracer      trace.Tracer
}

type Option func(*Service)

func WithObservability(obs *observability.Observability) Option {
	return func(s *Service) {
		s.obs = obs
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func NewService(cfg config.AssistantConfig, loop Runner, q Querier, synth *synthesis.Synthesizer, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:         cfg,
		loop:        loop,
		catalog:     q,
		synthesizer: synth,
		logger:      log.With(map[string]interface{}{"component": "assistant"}),
		tracer:      observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deadline is the bound applied to every Ask.
func (s *Service) Deadline() time.Duration {
	return s.cfg.DeadlineDuration()
}

func (s *Service) path() Path {
	if s.cfg.Mode == config.ModeDirect || s.loop == nil {
		return PathDirect
	}
	return PathAgent
}

// Ask answers input. The returned Reply always carries the classified Outcome; the error is
// nil only for OutcomeAnswered. Use Message(reply.Outcome) for the text shown to the user.
func (s *Service) Ask(ctx context.Context, input string) (Reply, error) {
	start := time.Now()
	path := s.path()

	if strings.TrimSpace(input) == "" {
		reply := Reply{Path: path, Outcome: OutcomeRejected}
		s.record(ctx, reply, time.Since(start))
		return reply, ErrInputMissing
	}

	sessionID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "assistant.ask", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("path", string(path)),
	))
	defer span.End()

	log := s.logger.With(map[string]interface{}{
		"sessionId": sessionID,
		"path":      string(path),
	})

	reply, err := RunWithDeadline(ctx, s.Deadline(), func(ctx context.Context) (Reply, error) {
		if path == PathDirect {
			return s.direct(ctx, sessionID, input)
		}
		return s.agent(ctx, sessionID, input, log)
	})
	if reply.Path == "" {
		reply.Path = path
	}
	reply.SessionID = sessionID
	reply.Outcome = OutcomeOf(err)

	elapsed := time.Since(start)
	s.record(ctx, reply, elapsed)
	span.SetAttributes(
		attribute.String("outcome", string(reply.Outcome)),
		attribute.Int("iterations", reply.Iterations),
	)

	fields := map[string]interface{}{
		"outcome":    string(reply.Outcome),
		"iterations": reply.Iterations,
		"fallback":   reply.Fallback,
		"elapsedMs":  elapsed.Milliseconds(),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields["error"] = err.Error()
		log.Warn("Assistant request failed", fields)
		return reply, err
	}
	log.Info("Assistant request answered", fields)
	return reply, nil
}

func (s *Service) agent(ctx context.Context, sessionID, input string, log logger.Logger) (Reply, error) {
	session := s.loop.Run(ctx, sessionID, input)
	reply := Reply{
		Response:   session.Answer,
		Path:       PathAgent,
		Iterations: session.Iterations,
		Steps:      session.Steps,
	}

	switch session.State {
	case orchestrator.StateAnswered:
		return reply, nil
	case orchestrator.StateExhausted:
		return reply, session.Err
	}

	if ctx.Err() != nil || !s.cfg.FallbackToDirect || isTimeout(session.Err) {
		return reply, session.Err
	}

	log.Warn("Orchestration failed, falling back to direct path", map[string]interface{}{
		"iterations": session.Iterations,
		"error":      errString(session.Err),
	})
	direct, err := s.direct(ctx, sessionID, input)
	direct.Iterations = session.Iterations
	direct.Steps = session.Steps
	direct.Fallback = true
	return direct, err
}

// direct resolves input locally, reads the catalog once and narrates the rows.
func (s *Service) direct(ctx context.Context, sessionID, input string) (Reply, error) {
	reply := Reply{Path: PathDirect}

	res, err := s.catalog.Query(ctx, catalog.TextRequest(input))
	if err != nil {
		return reply, err
	}

	answer, err := s.synthesizer.Synthesize(ctx, input, res.Products)
	if err != nil {
		return reply, err
	}
	reply.Response = answer
	return reply, nil
}

func (s *Service) record(ctx context.Context, reply Reply, elapsed time.Duration) {
	metrics.AssistantRequests.WithLabelValues(string(reply.Path), string(reply.Outcome)).Inc()
	metrics.AssistantRequestDuration.WithLabelValues(string(reply.Path)).Observe(elapsed.Seconds())
	s.obs.RecordRequest(ctx, string(reply.Path), string(reply.Outcome), elapsed)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
