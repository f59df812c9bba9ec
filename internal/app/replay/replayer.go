package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/VitalFlow/internal/app/transmit"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

var sleep = transmit.Sleep

// Result summarizes one replay pass.
type Result struct {
	Delivered int
	Remaining uint64
}

// Run resends every uncommitted spool entry in append order through a
// connected transport. The watermark is committed every batchSize deliveries
// and at the end. Each entry gets pol.MaxAttempts tries with doubling
// backoff; the pass stops at the first entry that still fails so ordering is
// kept and that entry stays pending.
func Run(ctx context.Context, sp ports.Spool, tr ports.Transport, pol ports.RetryPolicy, batchSize int, obs ports.Observability) (Result, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	var (
		res     Result
		last    ports.SpoolEntryID
		pending int
	)
	commit := func() error {
		if pending == 0 {
			return nil
		}
		pending = 0
		if err := sp.Commit(last); err != nil {
			obs.LogError("spool_commit_failed", err)
			return fmt.Errorf("commit spool at %d: %w", last, err)
		}
		return nil
	}

	from := sp.Stats().OldestUncommitted
	err := sp.Iterate(from, func(id ports.SpoolEntryID, msg *domain.Message) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		if err := send(ctx, tr, pol, msg, obs); err != nil {
			obs.LogError("replay_send_failed", err,
				ports.Field{Key: "spool_id", Value: uint64(id)},
				ports.Field{Key: "message_id", Value: msg.ID})
			return fmt.Errorf("replay %s via %s: %w", msg.ID, tr.Name(), err)
		}
		obs.ObserveLatency("vitalflow_send_latency_seconds", msg.SensorName, time.Since(start).Seconds())
		obs.IncCounter("vitalflow_replayed_total", msg.SensorName, 1)

		res.Delivered++
		last = id
		pending++
		if pending >= batchSize {
			return commit()
		}
		return nil
	})
	if cerr := commit(); err == nil {
		err = cerr
	}

	res.Remaining = sp.Stats().Pending()
	obs.LogInfo("replay_finished",
		ports.Field{Key: "delivered", Value: res.Delivered},
		ports.Field{Key: "remaining", Value: res.Remaining})
	return res, err
}

func send(ctx context.Context, tr ports.Transport, pol ports.RetryPolicy, msg *domain.Message, obs ports.Observability) error {
	attempts := pol.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := pol.Backoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = attemptSend(ctx, tr, pol.SendTimeout, msg)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		obs.LogError("replay_retry", lastErr,
			ports.Field{Key: "message_id", Value: msg.ID},
			ports.Field{Key: "attempt", Value: attempt})
		if err := sleep(ctx, backoff); err != nil {
			return errors.Join(lastErr, err)
		}
		backoff *= 2
	}
	return lastErr
}

func attemptSend(ctx context.Context, tr ports.Transport, timeout time.Duration, msg *domain.Message) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return tr.Send(ctx, msg)
}
