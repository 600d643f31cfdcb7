package chain

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Confirmable is a ledger whose pending transactions can be swept.
type Confirmable interface {
	ConfirmPending(ctx context.Context) (int, error)
}

// Confirmer runs the confirmation sweep on a cron schedule.
type Confirmer struct {
	cron    *cron.Cron
	ledger  Confirmable
	spec    string
	logger  *zap.Logger
	mu      sync.Mutex
	running bool
}

// NewConfirmer creates a confirmer; spec accepts the six-field cron format
// and descriptors such as "@every 15s".
func NewConfirmer(ledger Confirmable, spec string, logger *zap.Logger) *Confirmer {
	return &Confirmer{
		cron:   cron.New(cron.WithSeconds()),
		ledger: ledger,
		spec:   spec,
		logger: logger,
	}
}

// Start schedules the sweep. Sweeps use ctx and stop doing work once it is
// cancelled.
func (c *Confirmer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("confirmer already running")
	}

	_, err := c.cron.AddFunc(c.spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.ledger.ConfirmPending(ctx); err != nil {
			c.logger.Error("Confirmation sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid confirmation schedule %q: %w", c.spec, err)
	}

	c.logger.Info("Starting chain confirmer", zap.String("schedule", c.spec))
	c.cron.Start()
	c.running = true
	return nil
}

// Stop waits for a running sweep to finish.
func (c *Confirmer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}

	c.logger.Info("Stopping chain confirmer")
	ctx := c.cron.Stop()
	<-ctx.Done()
	c.running = false
}
