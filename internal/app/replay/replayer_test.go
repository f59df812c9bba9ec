package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghalamif/VitalFlow/internal/app/transmit"
	"github.com/ghalamif/VitalFlow/internal/domain"
	"github.com/ghalamif/VitalFlow/internal/ports"
)

type memSpool struct {
	ports.Spool
	msgs      []*domain.Message
	committed ports.SpoolEntryID
	commits   []ports.SpoolEntryID
}

func (s *memSpool) Iterate(from ports.SpoolEntryID, fn func(ports.SpoolEntryID, *domain.Message) error) error {
	for i, m := range s.msgs {
		id := ports.SpoolEntryID(i + 1)
		if id < from {
			continue
		}
		if err := fn(id, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *memSpool) Commit(upto ports.SpoolEntryID) error {
	s.committed = upto
	s.commits = append(s.commits, upto)
	return nil
}

func (s *memSpool) Stats() ports.SpoolStats {
	return ports.SpoolStats{
		OldestUncommitted: s.committed + 1,
		LatestAppended:    ports.SpoolEntryID(len(s.msgs)),
	}
}

type flakyTransport struct {
	failOn   string
	failures int // failOn fails this many times, then succeeds; 0 means always
	attempts int
	sent     []string
}

func (f *flakyTransport) Name() string                  { return "flaky" }
func (f *flakyTransport) Connect(context.Context) error { return nil }
func (f *flakyTransport) Close() error                  { return nil }
func (f *flakyTransport) Send(_ context.Context, msg *domain.Message) error {
	f.attempts++
	if msg.ID == f.failOn && (f.failures == 0 || f.attempts <= f.failures) {
		return errors.New("unreachable")
	}
	f.sent = append(f.sent, msg.ID)
	return nil
}

type nopObs struct{}

func (nopObs) LogInfo(string, ...ports.Field)            {}
func (nopObs) LogError(string, error, ...ports.Field)    {}
func (nopObs) LogCritical(string, error, ...ports.Field) {}
func (nopObs) IncCounter(string, string, float64)        {}
func (nopObs) ObserveLatency(string, string, float64)    {}
func (nopObs) SetGauge(string, float64)                  {}

func spoolOf(ids ...string) *memSpool {
	sp := &memSpool{}
	for _, id := range ids {
		sp.msgs = append(sp.msgs, &domain.Message{ID: id, SensorName: "ECG"})
	}
	return sp
}

func TestRunDeliversPendingInOrder(t *testing.T) {
	sp := spoolOf("a", "b", "c")
	sp.committed = 1
	tr := &flakyTransport{}

	res, err := Run(context.Background(), sp, tr, ports.RetryPolicy{}, 10, nopObs{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(tr.sent) != 2 || tr.sent[0] != "b" || tr.sent[1] != "c" {
		t.Fatalf("expected b,c to be resent, got %v", tr.sent)
	}
	if res.Delivered != 2 || res.Remaining != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(sp.commits) != 1 || sp.commits[0] != 3 {
		t.Fatalf("expected single commit at 3, got %v", sp.commits)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	sp := spoolOf("a", "b", "c", "d")
	tr := &flakyTransport{failOn: "c"}

	res, err := Run(context.Background(), sp, tr, ports.RetryPolicy{}, 1, nopObs{})
	if err == nil {
		t.Fatal("expected replay error")
	}
	if res.Delivered != 2 || res.Remaining != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if sp.committed != 2 {
		t.Fatalf("expected watermark at 2, got %d", sp.committed)
	}
	if len(tr.sent) != 2 {
		t.Fatalf("entries after the failure must not be sent, got %v", tr.sent)
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	sp := spoolOf("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, sp, &flakyTransport{}, ports.RetryPolicy{}, 1, nopObs{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Delivered != 0 || res.Remaining != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunRetriesWithBackoff(t *testing.T) {
	var waits []time.Duration
	sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { sleep = transmit.Sleep })

	sp := spoolOf("a", "b")
	tr := &flakyTransport{failOn: "a", failures: 2}
	pol := ports.RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Millisecond}

	res, err := Run(context.Background(), sp, tr, pol, 10, nopObs{})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.Delivered != 2 || res.Remaining != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if tr.attempts != 4 {
		t.Fatalf("expected 4 send attempts, got %d", tr.attempts)
	}
	if len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond {
		t.Fatalf("expected doubling backoff, got %v", waits)
	}
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	sleep = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { sleep = transmit.Sleep })

	sp := spoolOf("a", "b")
	tr := &flakyTransport{failOn: "a"}

	res, err := Run(context.Background(), sp, tr, ports.RetryPolicy{MaxAttempts: 3}, 10, nopObs{})
	if err == nil {
		t.Fatal("expected replay error")
	}
	if tr.attempts != 3 || len(tr.sent) != 0 {
		t.Fatalf("expected 3 attempts on a and nothing sent, got %d %v", tr.attempts, tr.sent)
	}
	if res.Delivered != 0 || res.Remaining != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}
