package sim

import (
	"context"

	"rotationctrl/internal/bus"
)

// AnswerVariation replies to every declination request on b with decl
// until ctx is cancelled. It stands in for a magnetic model while
// simulating.
func AnswerVariation(ctx context.Context, b *bus.Bus, decl float64) error {
	reply, err := bus.Encode(bus.Variation{Decl: decl})
	if err != nil {
		return err
	}
	id, ch := b.Subscribe(8)
	defer b.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.ID == bus.VariationRequestID {
				b.Publish(reply)
			}
		}
	}
}
