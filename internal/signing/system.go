package signing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/practicanteticPX/docuprex/pkg/auth"
	"github.com/practicanteticPX/docuprex/pkg/keylock"
	"github.com/practicanteticPX/docuprex/pkg/lifecycle"
)

// EffectHandler executes the effects of a committed change. Handlers run
// concurrently and their errors are logged, never returned to the caller.
// Changes of one document are handled one at a time, but not necessarily in
// commit order: handlers that write derived state reload it from the Store.
type EffectHandler interface {
	Handle(ctx context.Context, c Change) error
}

// EffectHandlerFunc adapts a function to EffectHandler.
type EffectHandlerFunc func(ctx context.Context, c Change) error

func (f EffectHandlerFunc) Handle(ctx context.Context, c Change) error {
	return f(ctx, c)
}

// System defines the public contract for the signing workflow.
type System interface {
	Handler() *Handler

	// Register adds a named effect handler. Call before serving traffic.
	Register(name string, h EffectHandler)

	Snapshot(ctx context.Context, documentID uuid.UUID) (View, error)
	Assign(ctx context.Context, actor auth.Identity, documentID uuid.UUID, batch []Participant) (View, error)
	Act(ctx context.Context, actor auth.Identity, documentID uuid.UUID, cmd ActCommand) (Outcome, error)
	Remove(ctx context.Context, actor auth.Identity, documentID, userID uuid.UUID) (View, error)
	Reorder(ctx context.Context, actor auth.Identity, documentID uuid.UUID, order []uuid.UUID) (View, error)

	// Start registers a shutdown hook that waits for in-flight effect dispatches.
	Start(lc *lifecycle.Coordinator) error
}

type namedHandler struct {
	name    string
	handler EffectHandler
}

type engine struct {
	store    Store
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time
	handlers []namedHandler
	inflight sync.WaitGroup
	docs     keylock.Map[uuid.UUID]
}

// Option configures the engine.
type Option func(*engine)

// WithClock overrides the time source used to stamp assignments and outcomes.
func WithClock(now func() time.Time) Option {
	return func(e *engine) { e.now = now }
}

// New creates the signing engine. timeout bounds each post-commit dispatch.
func New(store Store, logger *slog.Logger, timeout time.Duration, opts ...Option) System {
	e := &engine{
		store:   store,
		logger:  logger.With("system", "signing"),
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engine) Handler() *Handler {
	return NewHandler(e, e.logger)
}

func (e *engine) Register(name string, h EffectHandler) {
	e.handlers = append(e.handlers, namedHandler{name: name, handler: h})
}

func (e *engine) Start(lc *lifecycle.Coordinator) error {
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		e.inflight.Wait()
		e.logger.Info("effect dispatch drained")
	})
	return nil
}

func (e *engine) Snapshot(ctx context.Context, documentID uuid.UUID) (View, error) {
	snap, err := e.store.Snapshot(ctx, documentID)
	if err != nil {
		return View{}, err
	}
	return NewView(snap), nil
}

func (e *engine) Assign(
	ctx context.Context,
	actor auth.Identity,
	documentID uuid.UUID,
	batch []Participant,
) (View, error) {
	ids := make([]uuid.UUID, len(batch))
	for i, p := range batch {
		ids[i] = p.UserID
	}

	users, err := e.store.Users(ctx, ids)
	if err != nil {
		return View{}, fmt.Errorf("resolve participants: %w", err)
	}

	now := e.now()
	return e.update(ctx, actor, documentID, func(s Snapshot) (Snapshot, error) {
		return s.Assign(actor, batch, users, now)
	})
}

func (e *engine) Act(
	ctx context.Context,
	actor auth.Identity,
	documentID uuid.UUID,
	cmd ActCommand,
) (Outcome, error) {
	var outcome Outcome
	now := e.now()

	_, err := e.update(ctx, actor, documentID, func(s Snapshot) (Snapshot, error) {
		next, o, err := s.Act(actor, cmd, now)
		outcome = o
		return next, err
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (e *engine) Remove(ctx context.Context, actor auth.Identity, documentID, userID uuid.UUID) (View, error) {
	return e.update(ctx, actor, documentID, func(s Snapshot) (Snapshot, error) {
		return s.Remove(actor, userID)
	})
}

func (e *engine) Reorder(
	ctx context.Context,
	actor auth.Identity,
	documentID uuid.UUID,
	order []uuid.UUID,
) (View, error) {
	return e.update(ctx, actor, documentID, func(s Snapshot) (Snapshot, error) {
		return s.Reorder(actor, order)
	})
}

func (e *engine) update(
	ctx context.Context,
	actor auth.Identity,
	documentID uuid.UUID,
	fn func(Snapshot) (Snapshot, error),
) (View, error) {
	before, after, err := e.store.Update(ctx, documentID, fn)
	if err != nil {
		return View{}, err
	}

	change := Change{
		Before:  before,
		After:   after,
		ActorID: actor.ID,
		Effects: PlanEffects(before, after),
	}

	e.logger.Info(
		"signing state changed",
		"document_id", documentID,
		"actor_id", actor.ID,
		"status", after.Status,
		"effects", len(change.Effects),
	)

	e.dispatch(ctx, change)
	return NewView(after), nil
}

// dispatch runs every registered handler concurrently on a context detached
// from the request. It never blocks the caller. Dispatches for the same
// document are serialized.
func (e *engine) dispatch(ctx context.Context, c Change) {
	if len(c.Effects) == 0 || len(e.handlers) == 0 {
		return
	}

	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		unlock := e.docs.Lock(c.After.DocumentID)
		defer unlock()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()

		var g errgroup.Group
		for _, h := range e.handlers {
			g.Go(func() error {
				if err := h.handler.Handle(ctx, c); err != nil {
					e.logger.Error(
						"effect handler failed",
						"handler", h.name,
						"document_id", c.After.DocumentID,
						"error", err,
					)
				}
				return nil
			})
		}
		g.Wait()
	}()
}
