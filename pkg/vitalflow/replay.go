package vitalflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/ghalamif/VitalFlow/internal/adapters/observability"
	"github.com/ghalamif/VitalFlow/internal/adapters/spool"
	"github.com/ghalamif/VitalFlow/internal/app/replay"
)

// ReplayResult reports how many spooled messages were delivered and how many
// are still pending.
type ReplayResult = replay.Result

// Replay resends the messages kept under spool.dir through the configured
// transport and compacts the spool afterwards. Only WithTransport,
// WithObservability, WithSpool and WithRegistry are honoured.
func Replay(ctx context.Context, cfg *Config, opts ...RuntimeOption) (ReplayResult, error) {
	if cfg == nil {
		return ReplayResult{}, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	sp := overrides.spool
	if sp == nil {
		if cfg.Spool.Dir == "" {
			return ReplayResult{}, fmt.Errorf("spool.dir is not configured")
		}
		fileSpool, err := spool.Open(cfg.Spool.Dir)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("open spool: %w", err)
		}
		defer fileSpool.Close()
		sp = fileSpool
	}

	obs := overrides.observability
	if obs == nil {
		logger, err := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
		if err != nil {
			return ReplayResult{}, err
		}
		defer logger.Sync()
		reg := overrides.registry
		if reg == nil {
			reg = prometheusRegistry()
		}
		obs = observability.NewPromObs(logger, reg)
	}

	if sp.Stats().Pending() == 0 {
		obs.LogInfo("spool_empty")
		return ReplayResult{}, nil
	}

	tr := overrides.transport
	if tr == nil {
		var err error
		if tr, err = NewTransport(cfg.Transport, obs); err != nil {
			return ReplayResult{}, err
		}
	}
	if err := tr.Connect(ctx); err != nil {
		return ReplayResult{}, fmt.Errorf("connect %s: %w", tr.Name(), err)
	}

	res, err := replay.Run(ctx, sp, tr, cfg.Transport.Retry, cfg.Spool.ReplayBatch, obs)
	if cerr := tr.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close %s: %w", tr.Name(), cerr))
	}
	if res.Delivered > 0 {
		if cerr := sp.Compact(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}
	return res, err
}
