package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/editorial/common/id"
	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrNotClosingSummary is returned when a summary that is not the final
// summary of a COMPLETE thread is offered for append.
var ErrNotClosingSummary = errors.New("only final summaries of complete threads can be appended")

const DefaultAppendAttempts = 3

// AppendResult describes one successful append.
type AppendResult struct {
	Facts     []model.KnowledgeFact
	Version   int64
	Conflicts []model.ConflictingFactError
	Attempts  int
}

type Service struct {
	stores   store.Provider
	ids      id.Generator
	attempts int
	now      func() time.Time
}

func NewService(stores store.Provider, ids id.Generator, attempts int) *Service {
	if attempts <= 0 {
		attempts = DefaultAppendAttempts
	}
	return &Service{stores: stores, ids: ids, attempts: attempts, now: time.Now}
}

// WithClock replaces the time source used for ExtractedAt.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Load reads the project's facts and preferences concurrently.
func (s *Service) Load(ctx context.Context, projectID string) (model.KnowledgeSnapshot, error) {
	snap := model.KnowledgeSnapshot{ProjectID: projectID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		facts, version, err := s.stores.Knowledge().List(gctx, projectID)
		if err != nil {
			return fmt.Errorf("loading facts: %w", err)
		}
		snap.Facts, snap.FactsVersion = facts, version
		return nil
	})
	g.Go(func() error {
		prefs, err := s.stores.Preferences().Get(gctx, projectID)
		if err != nil {
			return fmt.Errorf("loading preferences: %w", err)
		}
		snap.Preferences = prefs
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.KnowledgeSnapshot{}, err
	}
	return snap, nil
}

// AppendClosingSummary appends the explicit facts of a closing summary on top
// of the given facts version. Facts already known are skipped; facts that
// contradict the latest known answer on the same subject are appended and
// reported as conflicts.
func (s *Service) AppendClosingSummary(ctx context.Context, ks store.KnowledgeStore, known []model.KnowledgeFact, version int64, summary model.ThreadSummary) (AppendResult, error) {
	if !summary.Final || summary.ThreadPhase != model.ThreadPhaseComplete {
		return AppendResult{}, fmt.Errorf("thread %s (phase %s, final %t): %w", summary.ThreadID, summary.ThreadPhase, summary.Final, ErrNotClosingSummary)
	}

	facts, conflicts := s.newFacts(known, summary)
	result := AppendResult{Version: version, Conflicts: conflicts}
	if len(facts) == 0 {
		return result, nil
	}

	next, err := ks.Append(ctx, summary.ProjectID, version, facts)
	if err != nil {
		return AppendResult{}, err
	}
	result.Facts = facts
	result.Version = next
	return result, nil
}

// AppendWithRetry reloads the fact log and retries the append when another
// writer moved the facts version in between. Conflicts are re-checked against
// every reload.
func (s *Service) AppendWithRetry(ctx context.Context, ks store.KnowledgeStore, summary model.ThreadSummary) (AppendResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(summary.ProjectID),
		ThreadID:  logger.Ptr(summary.ThreadID),
		Component: "editorial.knowledge.service",
	})

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		known, version, err := ks.List(ctx, summary.ProjectID)
		if err != nil {
			return AppendResult{}, fmt.Errorf("reloading facts: %w", err)
		}

		result, err := s.AppendClosingSummary(ctx, ks, known, version, summary)
		if err == nil {
			result.Attempts = attempt
			slog.InfoContext(ctx, "closing summary appended",
				"facts", len(result.Facts),
				"conflicts", len(result.Conflicts),
				"facts_version", result.Version,
				"attempt", attempt)
			return result, nil
		}

		var stale *model.StaleKnowledgeAppendError
		if !errors.As(err, &stale) {
			return AppendResult{}, err
		}
		lastErr = err
		slog.WarnContext(ctx, "knowledge append raced, reloading",
			"attempt", attempt,
			"expected", stale.Expected,
			"actual", stale.Actual)
	}
	return AppendResult{}, fmt.Errorf("appending after %d attempts: %w", s.attempts, lastErr)
}

func (s *Service) newFacts(known []model.KnowledgeFact, summary model.ThreadSummary) ([]model.KnowledgeFact, []model.ConflictingFactError) {
	latest := map[string]model.KnowledgeFact{}
	for _, f := range known {
		subject := model.NormalizeKey(f.Question)
		if prev, ok := latest[subject]; ok && newerFact(prev, f) {
			continue
		}
		latest[subject] = f
	}

	conflicts := append([]model.ConflictingFactError(nil), summary.Conflicts...)
	flagged := map[string]bool{}
	for _, c := range conflicts {
		flagged[model.NormalizeKey(c.Subject)+"\x00"+model.NormalizeKey(c.Incoming)] = true
	}

	now := s.now().UTC()
	seen := map[string]bool{}
	var out []model.KnowledgeFact
	for _, f := range summary.ExplicitFacts() {
		subject, value := model.NormalizeKey(f.Subject), model.NormalizeKey(f.Value)
		key := subject + "\x00" + value
		if seen[key] {
			continue
		}
		seen[key] = true

		prev, ok := latest[subject]
		if ok && model.NormalizeKey(prev.Answer) == value {
			continue
		}
		if ok && !flagged[key] {
			conflicts = append(conflicts, model.ConflictingFactError{
				Subject:        f.Subject,
				Established:    prev.Answer,
				EstablishedRef: "thread " + prev.SourceThreadID,
				Incoming:       f.Value,
				IncomingRef:    "thread " + summary.ThreadID,
			})
			flagged[key] = true
		}

		out = append(out, model.KnowledgeFact{
			ID:             s.ids.NewID(),
			ProjectID:      summary.ProjectID,
			Question:       f.Subject,
			Answer:         f.Value,
			SourceThreadID: summary.ThreadID,
			ExtractedAt:    now,
			Confidence:     model.ConfidenceExplicit,
		})
	}
	return out, conflicts
}

// newerFact reports whether a was recorded after b.
func newerFact(a, b model.KnowledgeFact) bool {
	if !a.ExtractedAt.Equal(b.ExtractedAt) {
		return a.ExtractedAt.After(b.ExtractedAt)
	}
	return a.ID > b.ID
}
