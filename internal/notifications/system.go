package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/practicanteticPX/docuprex/internal/signing"
	"github.com/practicanteticPX/docuprex/pkg/cache"
	"github.com/practicanteticPX/docuprex/pkg/keylock"
	"github.com/practicanteticPX/docuprex/pkg/lifecycle"
	"github.com/practicanteticPX/docuprex/pkg/pagination"
)

// Config tunes delivery and the reminder sweep.
type Config struct {
	Workers       int
	RatePerSecond float64
	Burst         int
	DedupeWindow  time.Duration
	ReminderAfter time.Duration
	SweepInterval time.Duration
	AppURL        string
}

// Stats counts delivery outcomes since start.
type Stats struct {
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Suppressed int64 `json:"suppressed"`
	Revoked    int64 `json:"revoked"`
	Reminded   int64 `json:"reminded"`
}

// System executes notification effects and serves the inbox.
type System interface {
	signing.EffectHandler

	Handler() *Handler

	// Sweep reconciles signature requests of every open document with the
	// derived on-turn set, sends due reminders and drops requests left on
	// completed or rejected documents.
	Sweep(ctx context.Context) error

	List(ctx context.Context, userID uuid.UUID, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Notification], error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error

	Stats() Stats

	// Start launches the sweep ticker on the lifecycle.
	Start(lc *lifecycle.Coordinator) error
}

type counters struct {
	sent, failed, suppressed, revoked, reminded atomic.Int64
}

type orchestrator struct {
	repo       Repository
	state      signing.Store
	sender     Sender
	cache      cache.System
	limiter    *rate.Limiter
	cfg        Config
	pagination pagination.Config
	logger     *slog.Logger
	now        func() time.Time
	stats      counters
	docs       keylock.Map[uuid.UUID]
}

// New creates the notification system.
func New(
	repo Repository,
	state signing.Store,
	sender Sender,
	c cache.System,
	cfg Config,
	pagination pagination.Config,
	logger *slog.Logger,
) System {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &orchestrator{
		repo:       repo,
		state:      state,
		sender:     sender,
		cache:      c,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		cfg:        cfg,
		pagination: pagination,
		logger:     logger.With("system", "notifications"),
		now:        time.Now,
	}
}

func (o *orchestrator) Handler() *Handler {
	return NewHandler(o, o.logger, o.pagination)
}

func (o *orchestrator) Stats() Stats {
	return Stats{
		Sent:       o.stats.sent.Load(),
		Failed:     o.stats.failed.Load(),
		Suppressed: o.stats.suppressed.Load(),
		Revoked:    o.stats.revoked.Load(),
		Reminded:   o.stats.reminded.Load(),
	}
}

func (o *orchestrator) List(
	ctx context.Context,
	userID uuid.UUID,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Notification], error) {
	page.Normalize(o.pagination)
	return o.repo.List(ctx, userID, page, filters)
}

func (o *orchestrator) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return o.repo.MarkRead(ctx, id, userID)
}

// delivery is one mail to send.
type delivery struct {
	kind       Kind
	documentID uuid.UUID
	title      string
	status     signing.Status
	to         Recipient
	// requestID is set for reminders so the row can be stamped after sending.
	requestID uuid.UUID
}

// Handle executes the notification effects of a committed change. Requests
// are aligned with the document's current on-turn set rather than the
// change's own diff, so changes handled out of commit order converge on the
// stored state. Database failures abort the handler; mail failures are
// counted and logged per recipient.
func (o *orchestrator) Handle(ctx context.Context, c signing.Change) error {
	if !notifies(c) {
		return nil
	}

	id := c.After.DocumentID
	unlock := o.docs.Lock(id)
	defer unlock()

	current, err := o.state.Snapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("load current state: %w", err)
	}

	jobs, err := o.align(ctx, current, false)
	if err != nil {
		return err
	}

	for _, e := range c.Of(signing.NotifyOwner) {
		kind := KindDocumentCompleted
		if e.Status == signing.StatusRejected {
			kind = KindDocumentRejected
		}

		created, err := o.repo.Notice(ctx, id, current.OwnerID, kind)
		if err != nil {
			return fmt.Errorf("record owner notice: %w", err)
		}
		if !created {
			continue
		}

		owner, err := o.repo.Recipient(ctx, current.OwnerID)
		if err != nil {
			return fmt.Errorf("resolve owner: %w", err)
		}
		jobs = append(jobs, delivery{
			kind:       kind,
			documentID: id,
			title:      current.Title,
			status:     e.Status,
			to:         owner,
		})
	}

	o.deliver(ctx, jobs)
	return nil
}

func notifies(c signing.Change) bool {
	return c.Has(signing.NotifyTurn) ||
		c.Has(signing.RevokeTurn) ||
		c.Has(signing.RevokeAll) ||
		c.Has(signing.NotifyOwner)
}

// request records a signature request for the user and returns the mail to
// send when the row is new.
func (o *orchestrator) request(ctx context.Context, doc signing.Snapshot, userID uuid.UUID) (delivery, bool, error) {
	created, err := o.repo.Request(ctx, doc.DocumentID, userID)
	if err != nil {
		return delivery{}, false, fmt.Errorf("record signature request: %w", err)
	}
	if !created {
		return delivery{}, false, nil
	}

	a, ok := doc.Assignment(userID)
	if !ok {
		return delivery{}, false, nil
	}

	return delivery{
		kind:       KindSignatureRequest,
		documentID: doc.DocumentID,
		title:      doc.Title,
		status:     doc.Status,
		to:         Recipient{ID: a.UserID, Name: a.Name, Email: a.Email},
	}, true, nil
}

// deliver fans mail out over a bounded worker group. Each send waits on the
// shared rate limiter and claims a dedupe key first. One recipient failing
// never cancels the others.
func (o *orchestrator) deliver(ctx context.Context, jobs []delivery) {
	if len(jobs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)

	for _, job := range jobs {
		g.Go(func() error {
			log := o.logger.With(
				"kind", job.kind,
				"document_id", job.documentID,
				"user_id", job.to.ID,
			)

			key := fmt.Sprintf("mail:%s:%s:%s", job.kind, job.documentID, job.to.ID)
			claimed, err := o.cache.Claim(ctx, key, o.cfg.DedupeWindow)
			if err != nil {
				log.Warn("dedupe claim failed, sending anyway", "error", err)
				claimed = true
			}
			if !claimed {
				o.stats.suppressed.Add(1)
				log.Debug("mail suppressed by dedupe window")
				return nil
			}

			if err := o.limiter.Wait(ctx); err != nil {
				o.stats.failed.Add(1)
				log.Error("rate limiter wait aborted", "error", err)
				return nil
			}

			msg, err := render(job.kind, job.to, mailData{
				Name:   job.to.Name,
				Title:  job.title,
				Link:   fmt.Sprintf("%s/documents/%s", o.cfg.AppURL, job.documentID),
				Status: string(job.status),
			})
			if err != nil {
				o.stats.failed.Add(1)
				log.Error("render mail failed", "error", err)
				return nil
			}

			if err := o.sender.Send(ctx, msg); err != nil {
				o.stats.failed.Add(1)
				log.Error("send mail failed", "error", err)
				if relErr := o.cache.Release(ctx, key); relErr != nil {
					log.Warn("release dedupe claim failed", "error", relErr)
				}
				return nil
			}

			if job.kind == KindReminder {
				o.stats.reminded.Add(1)
				if err := o.repo.Reminded(ctx, job.requestID); err != nil {
					log.Warn("stamp reminder failed", "error", err)
				}
			}

			o.stats.sent.Add(1)
			log.Info("mail sent")
			return nil
		})
	}

	g.Wait()
}
