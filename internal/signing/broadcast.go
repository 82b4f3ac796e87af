package signing

import (
	"context"
	"time"

	"github.com/practicanteticPX/docuprex/pkg/broadcast"
)

// Broadcaster publishes the Broadcast effect of each change to UI subscribers.
func Broadcaster(b broadcast.System) EffectHandler {
	return EffectHandlerFunc(func(ctx context.Context, c Change) error {
		for _, eff := range c.Of(Broadcast) {
			actor := c.ActorID
			err := b.Publish(ctx, broadcast.Event{
				Type:       eff.Event,
				DocumentID: c.After.DocumentID,
				Status:     string(c.After.Status),
				ActorID:    &actor,
				At:         time.Now().UTC(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
