package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/practicanteticPX/docuprex/internal/signing"
	"github.com/practicanteticPX/docuprex/pkg/lifecycle"
)

func (o *orchestrator) Start(lc *lifecycle.Coordinator) error {
	if o.cfg.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}

	lc.Go(func(ctx context.Context) {
		ticker := time.NewTicker(o.cfg.SweepInterval)
		defer ticker.Stop()

		o.logger.Info("reminder sweep started", "interval", o.cfg.SweepInterval)
		for {
			select {
			case <-ctx.Done():
				o.logger.Info("reminder sweep stopped")
				return
			case <-ticker.C:
				if err := o.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
					o.logger.Error("reminder sweep failed", "error", err)
				}
			}
		}
	})

	return nil
}

func (o *orchestrator) Sweep(ctx context.Context) error {
	closed, err := o.repo.RevokeClosed(ctx)
	if err != nil {
		return fmt.Errorf("revoke requests on closed documents: %w", err)
	}
	if closed > 0 {
		o.stats.revoked.Add(closed)
		o.logger.Info("revoked requests on closed documents", "count", closed)
	}

	ids, err := o.state.Open(ctx)
	if err != nil {
		return fmt.Errorf("list open documents: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.reconcile(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// reconcile aligns the stored requests of one document with its on-turn set
// and queues reminders for requests left unanswered too long.
func (o *orchestrator) reconcile(ctx context.Context, documentID uuid.UUID) error {
	unlock := o.docs.Lock(documentID)
	defer unlock()

	snap, err := o.state.Snapshot(ctx, documentID)
	if err != nil {
		return err
	}

	jobs, err := o.align(ctx, snap, true)
	if err != nil {
		return err
	}
	o.deliver(ctx, jobs)
	return nil
}

// align revokes stored requests of participants no longer on turn and records
// requests for those on turn without one. With remind set, requests older
// than the reminder threshold are queued for a reminder. The caller holds the
// document lock.
func (o *orchestrator) align(ctx context.Context, snap signing.Snapshot, remind bool) ([]delivery, error) {
	documentID := snap.DocumentID
	on := signing.OnTurn(snap.Assignments, snap.Outcomes)

	requests, err := o.repo.Requests(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load requests: %w", err)
	}

	var jobs []delivery
	held := make([]uuid.UUID, 0, len(requests))
	cutoff := o.now().Add(-o.cfg.ReminderAfter)

	for _, r := range requests {
		if !slices.Contains(on, r.UserID) {
			n, err := o.repo.Revoke(ctx, documentID, r.UserID)
			if err != nil {
				return nil, fmt.Errorf("revoke stale request: %w", err)
			}
			o.stats.revoked.Add(n)
			continue
		}
		held = append(held, r.UserID)

		if !remind || r.LastContact().After(cutoff) {
			continue
		}
		a, ok := snap.Assignment(r.UserID)
		if !ok {
			continue
		}
		if _, err := o.repo.Notice(ctx, documentID, r.UserID, KindReminder); err != nil {
			return nil, fmt.Errorf("record reminder: %w", err)
		}
		jobs = append(jobs, delivery{
			kind:       KindReminder,
			documentID: documentID,
			title:      snap.Title,
			status:     snap.Status,
			to:         Recipient{ID: a.UserID, Name: a.Name, Email: a.Email},
			requestID:  r.ID,
		})
	}

	for _, userID := range on {
		if slices.Contains(held, userID) {
			continue
		}
		d, ok, err := o.request(ctx, snap, userID)
		if err != nil {
			return nil, err
		}
		if ok {
			jobs = append(jobs, d)
		}
	}

	return jobs, nil
}
