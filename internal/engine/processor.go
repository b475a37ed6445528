package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"basegraph.app/editorial/common/logger"
	"basegraph.app/editorial/internal/assembler"
	"basegraph.app/editorial/internal/knowledge"
	"basegraph.app/editorial/internal/lock"
	"basegraph.app/editorial/internal/memory"
	"basegraph.app/editorial/internal/model"
	"basegraph.app/editorial/internal/persona"
	"basegraph.app/editorial/internal/phase"
	"basegraph.app/editorial/internal/store"
)

const (
	DefaultLLMTimeout = 90 * time.Second
	DefaultLockTTL    = 5 * time.Minute
)

type Config struct {
	Thresholds phase.Thresholds
	// EnvPersona is the deployment-wide default persona (EDITOR_PERSONA).
	EnvPersona string
	LLMTimeout time.Duration
	LockTTL    time.Duration
}

// Deps are the collaborators of a Processor. Stores is used for reads outside
// the commit transaction; every write goes through Tx.
type Deps struct {
	Source    ThreadSource
	Stores    store.Provider
	Tx        store.TxRunner
	Locker    lock.Locker
	Resolver  *persona.Resolver
	Memory    *memory.Manager
	Knowledge *knowledge.Service
	Assembler *assembler.Assembler
	Responder Responder
	Publisher Publisher
}

// Outcome is the result of one processed event.
type Outcome struct {
	EventID   int64
	Project   model.ProjectPhaseState
	Thread    model.ThreadPhaseState
	PersonaID string
	Bundle    *model.ContextBundle
	Reply     string
	// Closed is set when this event completed the thread and its facts were appended.
	Closed      bool
	NewFacts    []model.KnowledgeFact
	Conflicts   []model.ConflictingFactError
	Annotations []string
	// Skipped is set for a replayed event on a thread that is already complete.
	Skipped bool
}

type Processor struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

func NewProcessor(cfg Config, deps Deps) *Processor {
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = DefaultLLMTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	return &Processor{cfg: cfg, deps: deps, now: time.Now}
}

// WithClock replaces the time source used for phase evidence.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// loaded is everything read before classification.
type loaded struct {
	content  model.ThreadContent
	project  *model.ProjectPhaseState
	thread   *model.ThreadPhaseState
	snapshot model.KnowledgeSnapshot

	projectSignals []model.Signal
	now            time.Time
}

// Process handles one event for one thread. Nothing is written before the
// final commit; a failed or cancelled event leaves stored state untouched.
// Errors are *ProcessError.
func (p *Processor) Process(ctx context.Context, ev model.Event) (Outcome, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProjectID: logger.Ptr(ev.ProjectID),
		ThreadID:  logger.Ptr(ev.ThreadID),
		EventID:   logger.Ptr(ev.ID),
		EventType: logger.Ptr(string(ev.Type)),
		Component: "editorial.engine.processor",
	})

	out, err := p.process(ctx, ev)
	if err != nil {
		err = classify(ctx, err)
		slog.ErrorContext(ctx, "event processing failed",
			"error", err,
			"retryable", IsRetryable(err))
		return Outcome{}, err
	}
	return out, nil
}

func (p *Processor) process(ctx context.Context, ev model.Event) (Outcome, error) {
	if err := validateEvent(ev); err != nil {
		return Outcome{}, err
	}

	slog.InfoContext(ctx, "processing event")

	release, err := p.deps.Locker.Acquire(ctx, ev.ThreadID, p.cfg.LockTTL)
	if err != nil {
		return Outcome{}, fmt.Errorf("locking thread: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			slog.WarnContext(ctx, "releasing thread lock failed", "error", err)
		}
	}()

	in, err := p.load(ctx, ev)
	if err != nil {
		return Outcome{}, err
	}

	now := p.now().UTC()
	text := AuthorText(ev, in.content)
	projectSignals, threadSignals := EventSignals(ev, in.content, text, p.cfg.Thresholds)
	in.projectSignals, in.now = projectSignals, now

	project := phase.ClassifyProject(phase.ProjectInput{
		ProjectID: ev.ProjectID,
		Previous:  in.project,
		Signals:   projectSignals,
		Now:       now,
	})

	thread, err := phase.ClassifyThread(phase.ThreadInput{
		ThreadID:  ev.ThreadID,
		ProjectID: ev.ProjectID,
		Signals:   threadSignals,
		Turns:     in.content.Turns,
		Now:       now,
	}, in.thread)
	if err != nil {
		return Outcome{}, fmt.Errorf("classifying thread: %w", err)
	}

	if in.thread != nil && in.thread.Phase.Terminal() {
		slog.InfoContext(ctx, "thread already complete, skipping")
		return Outcome{EventID: ev.ID, Project: project, Thread: thread, Skipped: true}, nil
	}

	slog.InfoContext(ctx, "phases classified",
		"project_phase", project.Phase,
		"thread_phase", thread.Phase,
		"project_signals", len(projectSignals),
		"thread_signals", len(threadSignals))

	out := Outcome{EventID: ev.ID}
	if thread.Phase == model.ThreadPhaseComplete {
		err = p.close(ctx, in, &project, &thread, &out)
	} else {
		err = p.respond(ctx, ev, in, text, &project, &thread, &out)
	}
	if err != nil {
		return Outcome{}, err
	}

	p.publish(ctx, out)
	return out, nil
}

func validateEvent(ev model.Event) error {
	switch {
	case !ev.Type.Valid():
		return fmt.Errorf("event type %q: %w", ev.Type, ErrInvalidEvent)
	case strings.TrimSpace(ev.ProjectID) == "":
		return fmt.Errorf("missing project id: %w", ErrInvalidEvent)
	case strings.TrimSpace(ev.ThreadID) == "":
		return fmt.Errorf("missing thread id: %w", ErrInvalidEvent)
	}
	return nil
}

func (p *Processor) load(ctx context.Context, ev model.Event) (loaded, error) {
	var in loaded

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		content, err := p.deps.Source.Fetch(gctx, ev.ProjectID, ev.ThreadID)
		if err != nil {
			return fmt.Errorf("fetching thread: %w", err)
		}
		in.content = content
		return nil
	})
	g.Go(func() error {
		st, err := p.deps.Stores.Projects().Get(gctx, ev.ProjectID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("loading project phase: %w", err)
		}
		in.project = st
		return nil
	})
	g.Go(func() error {
		st, err := p.deps.Stores.Threads().Get(gctx, ev.ThreadID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("loading thread phase: %w", err)
		}
		in.thread = st
		return nil
	})
	g.Go(func() error {
		snap, err := p.deps.Knowledge.Load(gctx, ev.ProjectID)
		if err != nil {
			return fmt.Errorf("loading knowledge: %w", err)
		}
		in.snapshot = snap
		return nil
	})
	if err := g.Wait(); err != nil {
		return loaded{}, err
	}

	slog.InfoContext(ctx, "event context loaded",
		"turns", len(in.content.Turns),
		"facts", len(in.snapshot.Facts),
		"snapshot_version", in.snapshot.Version())
	return in, nil
}

// AuthorText is the text an event contributes as an author request. Fragments
// are content and closes carry no request.
func AuthorText(ev model.Event, content model.ThreadContent) string {
	switch ev.Type {
	case model.EventTypeFragmentSubmitted, model.EventTypeThreadClosed:
		return ""
	}
	if t := strings.TrimSpace(ev.Text); t != "" {
		return t
	}
	for i := len(content.Turns) - 1; i >= 0; i-- {
		if content.Turns[i].Role == model.RoleAuthor {
			return strings.TrimSpace(content.Turns[i].Text)
		}
	}
	return ""
}

// EventSignals gathers label signals first, then text signals, then inferred
// content signals, so later sources carry higher sequence numbers. text is the
// author text of the event (see AuthorText).
func EventSignals(ev model.Event, content model.ThreadContent, text string, thresholds phase.Thresholds) (project, thread []model.Signal) {
	labels := append(append([]string(nil), content.ProjectLabels...), content.ThreadLabels...)
	project, thread = phase.LabelSignals(labels)

	if text != "" {
		project = append(project, phase.ProjectTextSignals(text, nextSeq(project))...)
		thread = append(thread, phase.ThreadTextSignals(text, nextSeq(thread))...)
	}

	if ev.Type == model.EventTypeFragmentSubmitted {
		project = append(project, phase.ContentSignals(ev.FragmentIncorporated, ev.WordCount, ev.ChapterCount, thresholds, nextSeq(project))...)
	}

	if ev.Type == model.EventTypeThreadClosed {
		thread = append(thread, model.Signal{
			Kind:      model.SignalExplicit,
			Value:     model.SignalClose,
			Rationale: "thread closed on the tracker",
			Seq:       nextSeq(thread),
		})
	}
	return project, thread
}

func nextSeq(signals []model.Signal) int {
	next := 0
	for _, s := range signals {
		next = max(next, s.Seq+1)
	}
	return next
}

// close summarizes the whole thread and commits the phase states together
// with the fact append.
func (p *Processor) close(ctx context.Context, in loaded, project *model.ProjectPhaseState, thread *model.ThreadPhaseState, out *Outcome) error {
	llmCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	summary, err := p.deps.Memory.Close(llmCtx, *thread, in.content.Turns, in.snapshot.Facts)
	if err != nil {
		return fmt.Errorf("summarizing closed thread: %w", err)
	}
	thread.OpenQuestions = nil

	var appended knowledge.AppendResult
	err = p.commit(ctx, in, project, thread, func(tx store.Provider) error {
		var appendErr error
		appended, appendErr = p.deps.Knowledge.AppendWithRetry(ctx, tx.Knowledge(), summary)
		return appendErr
	})
	if err != nil {
		return err
	}

	out.Project, out.Thread = *project, *thread
	out.Closed = true
	out.NewFacts = appended.Facts
	out.Conflicts = appended.Conflicts

	slog.InfoContext(ctx, "thread closed",
		"new_facts", len(appended.Facts),
		"conflicts", len(appended.Conflicts),
		"facts_version", appended.Version)
	return nil
}

func (p *Processor) respond(ctx context.Context, ev model.Event, in loaded, text string, project *model.ProjectPhaseState, thread *model.ThreadPhaseState, out *Outcome) error {
	res, err := p.deps.Resolver.Resolve(persona.ResolveInput{
		Command:        text,
		ThreadOverride: thread.PersonaOverride,
		ThreadLabels:   in.content.ThreadLabels,
		EnvDefault:     p.cfg.EnvPersona,
		StoredDefault:  in.snapshot.Preferences.DefaultPersona,
		IntensityDelta: thread.IntensityDelta,
	})
	if err != nil {
		return fmt.Errorf("resolving persona: %w", err)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{PersonaID: logger.Ptr(res.PersonaID)})

	thread.IntensityDelta = res.IntensityDelta
	if res.Persist {
		thread.PersonaOverride = res.PersonaID
	}

	slog.InfoContext(ctx, "persona resolved",
		"source", res.Source,
		"intensity_delta", res.IntensityDelta,
		"persist", res.Persist)

	var reply string
	if res.ListRequested {
		reply = persona.FormatList(p.deps.Resolver.Catalog(), res.PersonaID)
	} else {
		bundle, view, err := p.generate(ctx, ev, in, res, *project, *thread)
		if err != nil {
			return err
		}
		reply = bundle.reply
		out.Bundle = &bundle.ContextBundle
		out.Annotations = view.Annotations
		thread.OpenQuestions = memory.MergeQuestions(view.OpenQuestions, memory.ExtractQuestions(reply))
	}

	if err := p.commit(ctx, in, project, thread, nil); err != nil {
		return err
	}

	out.Project, out.Thread = *project, *thread
	out.PersonaID = res.PersonaID
	out.Reply = reply
	return nil
}

type generated struct {
	model.ContextBundle
	reply string
}

func (p *Processor) generate(ctx context.Context, ev model.Event, in loaded, res persona.Resolution, project model.ProjectPhaseState, thread model.ThreadPhaseState) (generated, memory.View, error) {
	llmCtx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
	defer cancel()

	view, err := p.deps.Memory.Materialize(llmCtx, in.content.Turns, in.snapshot.Facts)
	if err != nil {
		return generated{}, memory.View{}, fmt.Errorf("materializing memory: %w", err)
	}

	task, content := res.Request, ""
	if ev.Type == model.EventTypeFragmentSubmitted {
		task, content = "Review the submitted fragment.", ev.Text
	}

	emotion, _ := phase.DetectEmotionalState(res.Request)
	bundle, err := p.deps.Assembler.Assemble(ctx, assembler.Input{
		ProjectID: ev.ProjectID,
		ThreadID:  ev.ThreadID,
		Persona:   res,
		Snapshot:  in.snapshot,
		Project:   project,
		Thread:    thread,
		Memory:    view,
		Emotion:   emotion,
		Task:      task,
		Content:   content,
	})
	if err != nil {
		return generated{}, memory.View{}, fmt.Errorf("assembling context: %w", err)
	}

	if bundle.Budget.NeedsSummarization {
		slog.WarnContext(ctx, "context budget nearly exhausted",
			"used", bundle.Budget.Used,
			"limit", bundle.Budget.Limit)
	}

	reply, err := p.deps.Responder.Respond(llmCtx, bundle)
	if err != nil {
		return generated{}, memory.View{}, fmt.Errorf("generating reply: %w", err)
	}
	return generated{ContextBundle: bundle, reply: reply}, view, nil
}

// commit saves the thread state, the project state when it changed, and runs
// extra in one transaction. Threads of one project run concurrently, so the
// project is read again in the transaction and the event's signals are applied
// to the current row when another thread moved it since load.
func (p *Processor) commit(ctx context.Context, in loaded, project *model.ProjectPhaseState, thread *model.ThreadPhaseState, extra func(store.Provider) error) error {
	var threadVersion int64
	if in.thread != nil {
		threadVersion = in.thread.Version
	}

	savedProject := *project
	var savedThread model.ThreadPhaseState
	err := p.deps.Tx.WithTx(ctx, func(tx store.Provider) error {
		var err error
		if savedThread, err = tx.Threads().Save(ctx, *thread, threadVersion); err != nil {
			return fmt.Errorf("saving thread phase: %w", err)
		}
		if savedProject, err = p.saveProject(ctx, tx, in, *project); err != nil {
			return err
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*project, *thread = savedProject, savedThread
	return nil
}

func (p *Processor) saveProject(ctx context.Context, tx store.Provider, in loaded, next model.ProjectPhaseState) (model.ProjectPhaseState, error) {
	current, err := tx.Projects().Get(ctx, next.ProjectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.ProjectPhaseState{}, fmt.Errorf("reloading project phase: %w", err)
	}

	base := in.project
	if current != nil && (base == nil || current.Version != base.Version) {
		slog.InfoContext(ctx, "project phase moved by another thread, reapplying signals",
			"stored_version", current.Version)
		base = current
		next = phase.ClassifyProject(phase.ProjectInput{
			ProjectID: next.ProjectID,
			Previous:  current,
			Signals:   in.projectSignals,
			Now:       in.now,
		})
	}
	if base != nil && !projectChanged(*base, next) {
		return *base, nil
	}

	var version int64
	if base != nil {
		version = base.Version
	}
	saved, err := tx.Projects().Save(ctx, next, version)
	if err != nil {
		return model.ProjectPhaseState{}, fmt.Errorf("saving project phase: %w", err)
	}
	return saved, nil
}

func projectChanged(prev, next model.ProjectPhaseState) bool {
	return prev.Phase != next.Phase ||
		prev.Pinned != next.Pinned ||
		len(prev.Evidence) != len(next.Evidence)
}

// publish runs after commit. A failure here cannot roll back, so it is logged.
func (p *Processor) publish(ctx context.Context, out Outcome) {
	if p.deps.Publisher == nil {
		return
	}
	err := p.deps.Publisher.Publish(ctx, Publication{
		ProjectID:    out.Project.ProjectID,
		ThreadID:     out.Thread.ThreadID,
		Reply:        out.Reply,
		ThreadLabel:  out.Thread.Phase.Label(),
		ProjectLabel: out.Project.Phase.Label(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "publishing reply failed", "error", err)
	}
}
