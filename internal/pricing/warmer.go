package pricing

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Warmer refreshes the price cache on a cron schedule so decisions rarely
// wait on the price API.
type Warmer struct {
	cron    *cron.Cron
	service *Service
	logger  *zap.Logger
	baseCtx context.Context
}

// NewWarmer schedules service.Refresh with a six-field (seconds) cron spec.
func NewWarmer(baseCtx context.Context, service *Service, spec string, logger *zap.Logger) (*Warmer, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Warmer{
		cron:    cron.New(cron.WithSeconds()),
		service: service,
		logger:  logger,
		baseCtx: baseCtx,
	}
	if _, err := w.cron.AddFunc(spec, w.refresh); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Warmer) refresh() {
	if _, err := w.service.Refresh(w.baseCtx); err != nil {
		w.logger.Warn("price warm-up failed", zap.Error(err))
	}
}

// Start runs the schedule in the background.
func (w *Warmer) Start() {
	w.logger.Info("price warmer started")
	w.cron.Start()
}

// Stop halts the schedule and waits for a running refresh.
func (w *Warmer) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("price warmer stopped")
}
