package sentiment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentiment-api/internal/history"
	"sentiment-api/internal/shared/metrics"
	"sentiment-api/internal/shared/telemetry"
	"sentiment-api/internal/worker"
)

const defaultHistoryTimeout = 3 * time.Second

// Invoker runs one inference worker process. *worker.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, text string) (*worker.Invocation, error)
}

// Service dispatches validated text to the inference worker and correlates
// the answer. It keeps no per-request state. History writes run in the
// background; call Wait before closing the repo.
type Service struct {
	Worker  Invoker
	History history.Repo
	// HistoryTimeout bounds one background history write.
	HistoryTimeout time.Duration

	pending sync.WaitGroup
}

// NewService constructs a Service. repo may be nil to skip history.
func NewService(w Invoker, repo history.Repo) *Service {
	return &Service{Worker: w, History: repo, HistoryTimeout: defaultHistoryTimeout}
}

// Wait blocks until background history writes finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatched is the successful outcome of Dispatch.
type Dispatched struct {
	Result        AnalysisResult
	InvocationID  string
	ExtraMessages int
}

// Dispatch runs exactly one worker invocation for text, which must already
// be validated, and correlates its output. Failures are *DispatchError.
func (s *Service) Dispatch(ctx context.Context, text string) (Dispatched, error) {
	if s.Worker == nil {
		return Dispatched{}, newError(KindInternalFault, "inference worker not configured")
	}
	start := time.Now()
	metrics.IncAnalysisStarted()

	inv, err := s.Worker.Invoke(ctx, text)
	if err != nil {
		kind := KindInternalFault
		if errors.Is(err, worker.ErrStart) {
			kind = KindWorkerCrashed
		}
		derr := newError(kind, "could not start inference worker: %v", err)
		s.finish(ctx, text, nil, AnalysisResult{}, derr, start)
		return Dispatched{}, derr
	}

	result, err := Correlate(inv)
	out := Dispatched{Result: result, InvocationID: inv.ID}
	if n := len(inv.Output); n > 1 {
		out.ExtraMessages = n - 1
		metrics.AddExtraMessages(out.ExtraMessages)
		telemetry.Warn("worker.extra_messages", map[string]any{
			"request_id":    requestIDFromContext(ctx),
			"invocation_id": inv.ID,
			"ignored":       out.ExtraMessages,
		})
	}
	s.finish(ctx, text, inv, result, err, start)
	return out, err
}

func (s *Service) finish(ctx context.Context, text string, inv *worker.Invocation, result AnalysisResult, err error, start time.Time) {
	elapsed := time.Since(start)
	outcome := history.OutcomeOK
	if err != nil {
		outcome = string(AsDispatchError(err).Kind)
	}
	metrics.IncAnalysisOutcome(outcome)
	metrics.ObserveAnalysisDuration(elapsed)

	if s.History == nil {
		return
	}
	rec := history.Record{
		ID:         uuid.NewString(),
		RequestID:  requestIDFromContext(ctx),
		Text:       text,
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	if inv != nil {
		rec.ID = inv.ID
		rec.WorkerStatus = string(inv.Status)
		if inv.ExitCode >= 0 {
			code := inv.ExitCode
			rec.ExitCode = &code
		}
		rec.ExtraMessages = max(len(inv.Output)-1, 0)
	}
	if err == nil {
		rec.Sentiment = string(result.Sentiment)
		confidence := result.Confidence
		rec.Confidence = &confidence
	}

	timeout := s.HistoryTimeout
	if timeout <= 0 {
		timeout = defaultHistoryTimeout
	}
	// Detached from the request so a disconnected client still gets recorded.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	repo := s.History
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := repo.Save(saveCtx, rec); err != nil {
			telemetry.Error("history.save_failed", map[string]any{
				"request_id": rec.RequestID,
				"record_id":  rec.ID,
				"error":      err,
			})
		}
	}()
}
