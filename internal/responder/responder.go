package responder

import (
	"context"
	"fmt"

	"BarBridge/internal/domain/repository"
)

// Responder is the pull path: a shared query core plus one or more
// transports. The lifecycle controller owns its start/stop.
type Responder struct {
	core       *Core
	transports []repository.QueryServer
}

// New assembles a responder from a core and its transports.
func New(core *Core, transports ...repository.QueryServer) *Responder {
	return &Responder{core: core, transports: transports}
}

// Core exposes the query core, mostly for tests.
func (r *Responder) Core() *Core { return r.core }

// Start brings every transport up; the first failure stops the ones already
// running so the caller never holds a half-started responder.
func (r *Responder) Start(ctx context.Context) error {
	for i, t := range r.transports {
		if err := t.Start(ctx); err != nil {
			for _, started := range r.transports[:i] {
				started.Stop()
			}
			return fmt.Errorf("responder transport %d: %w", i, err)
		}
	}
	return nil
}

// Stop marks the core unready first, then halts the transports, so requests
// racing teardown get an explained empty response rather than stale data.
func (r *Responder) Stop() {
	r.core.SetReady(false)
	for _, t := range r.transports {
		t.Stop()
	}
}

// IsConnected is true only when every transport is up.
func (r *Responder) IsConnected() bool {
	for _, t := range r.transports {
		if !t.IsConnected() {
			return false
		}
	}
	return true
}
