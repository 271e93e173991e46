package manager

import (
	"context"
	"time"
)

// gate bounds concurrent generation against a loaded model. One request
// runs at a time; up to maxQueue more may wait maxWait for their turn
// before being turned away.
type gate struct {
	queueCh chan struct{}
	genCh   chan struct{}
	maxWait time.Duration
}

func newGate(maxQueue int, maxWait time.Duration) *gate {
	return &gate{
		queueCh: make(chan struct{}, maxQueue),
		genCh:   make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// acquire claims a generation slot. The returned release function must be
// called exactly once when the request finishes.
func (g *gate) acquire(ctx context.Context, modelID string) (func(), error) {
	select {
	case g.queueCh <- struct{}{}:
	default:
		return nil, tooBusyError{modelID: modelID}
	}
	defer func() { <-g.queueCh }()

	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()

	select {
	case g.genCh <- struct{}{}:
		return func() { <-g.genCh }, nil
	case <-timer.C:
		return nil, tooBusyError{modelID: modelID}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
