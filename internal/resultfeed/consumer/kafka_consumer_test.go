package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/settlement"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

type fakeDeclarer struct {
	mu      sync.Mutex
	calls   []settlement.Declaration
	errs    []error // consumidos em ordem; vazio = sucesso
	markets map[string]string
}

func (f *fakeDeclarer) DeclareResult(_ context.Context, d settlement.Declaration) (settlement.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, d)
	if len(f.errs) == 0 {
		return settlement.Settlement{}, nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return settlement.Settlement{}, err
}

func (f *fakeDeclarer) MarketByName(_ context.Context, name string) (domain.Market, error) {
	id, ok := f.markets[name]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return domain.Market{ID: id, Name: name}, nil
}

type fakeWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	err      error
	failures int // falhas transitórias antes de aceitar
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.failures > 0 {
		w.failures--
		return errors.New("broker down")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func msg(t *testing.T, offset int64, ev events.ResultDetected) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Offset: offset, Key: []byte(ev.MarketName), Value: b}
}

func newProcessor(d *fakeDeclarer, dlq *fakeWriter) *Processor {
	return &Processor{Log: zap.NewNop(), Engine: d, DLQ: dlq, Backoff: time.Millisecond}
}

func TestHandle_ResolvesMarketByName(t *testing.T) {
	d := &fakeDeclarer{markets: map[string]string{"KALYAN": "m-1"}}
	p := newProcessor(d, &fakeWriter{})
	var declared int
	p.OnDeclared = func() { declared++ }

	five := 5
	err := p.Handle(context.Background(), msg(t, 1, events.ResultDetected{
		MarketName: "KALYAN", Session: "open", Pattern: " 230 ", Digit: &five, Day: "2026-03-01",
	}))
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if len(d.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(d.calls))
	}
	got := d.calls[0]
	if got.MarketID != "m-1" || got.Session != domain.SessionOpen || got.Pattern != "230" || *got.Digit != 5 || got.Day != "2026-03-01" {
		t.Errorf("declaration = %+v", got)
	}
	if declared != 1 {
		t.Errorf("OnDeclared calls = %d, want 1", declared)
	}
}

func TestHandle_MarketIDWins(t *testing.T) {
	d := &fakeDeclarer{}
	p := newProcessor(d, &fakeWriter{})
	if err := p.Handle(context.Background(), msg(t, 1, events.ResultDetected{
		MarketID: "m-9", MarketName: "UNKNOWN", Session: "close", Pattern: "111",
	})); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 1 || d.calls[0].MarketID != "m-9" {
		t.Errorf("calls = %+v, want market m-9", d.calls)
	}
}

func TestHandle_AlreadyDeclaredIsSwallowed(t *testing.T) {
	d := &fakeDeclarer{
		markets: map[string]string{"KALYAN": "m-1"},
		errs:    []error{&domain.AlreadyDeclaredError{MarketID: "m-1", Day: "2026-03-01", Session: domain.SessionOpen}},
	}
	dlq := &fakeWriter{}
	p := newProcessor(d, dlq)
	var dup int
	p.OnDuplicate = func() { dup++ }

	if err := p.Handle(context.Background(), msg(t, 1, events.ResultDetected{MarketName: "KALYAN", Session: "open", Pattern: "123"})); err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if dup != 1 || len(dlq.msgs) != 0 || len(d.calls) != 1 {
		t.Errorf("dup = %d, dlq = %d, calls = %d; want 1/0/1", dup, len(dlq.msgs), len(d.calls))
	}
}

func TestHandle_DeadLetters(t *testing.T) {
	tests := []struct {
		name       string
		value      []byte
		errs       []error
		wantReason string
		wantCalls  int
	}{
		{"bad json", []byte("{nope"), nil, "decode", 0},
		{"unknown market", mustJSON(events.ResultDetected{MarketName: "GHOST", Session: "open", Pattern: "123"}), nil, "rejected", 0},
		{"no market", mustJSON(events.ResultDetected{Session: "open", Pattern: "123"}), nil, "rejected", 0},
		{"validation", mustJSON(events.ResultDetected{MarketName: "KALYAN", Session: "open", Pattern: "12"}),
			[]error{domain.Invalid("pattern", "must be 3 digits")}, "rejected", 1},
		{"transient exhausted", mustJSON(events.ResultDetected{MarketName: "KALYAN", Session: "open", Pattern: "123"}),
			[]error{errors.New("db down"), errors.New("db down"), errors.New("db down")}, "exhausted", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDeclarer{markets: map[string]string{"KALYAN": "m-1"}, errs: tt.errs}
			dlq := &fakeWriter{}
			p := newProcessor(d, dlq)

			if err := p.Handle(context.Background(), kafka.Message{Key: []byte("k"), Value: tt.value}); err != nil {
				t.Fatalf("Handle() error: %v", err)
			}
			if len(d.calls) != tt.wantCalls {
				t.Errorf("declare calls = %d, want %d", len(d.calls), tt.wantCalls)
			}
			if len(dlq.msgs) != 1 {
				t.Fatalf("dlq messages = %d, want 1", len(dlq.msgs))
			}
			var dl DeadLetter
			if err := json.Unmarshal(dlq.msgs[0].Value, &dl); err != nil {
				t.Fatal(err)
			}
			if dl.Reason != tt.wantReason || string(dlq.msgs[0].Key) != "k" {
				t.Errorf("dead letter = %+v key %s, want reason %s", dl, dlq.msgs[0].Key, tt.wantReason)
			}
		})
	}
}

func TestHandle_TransientThenSuccess(t *testing.T) {
	d := &fakeDeclarer{markets: map[string]string{"KALYAN": "m-1"}, errs: []error{errors.New("deadlock")}}
	dlq := &fakeWriter{}
	p := newProcessor(d, dlq)
	var stages []string
	p.OnError = func(s string) { stages = append(stages, s) }

	if err := p.Handle(context.Background(), msg(t, 1, events.ResultDetected{MarketName: "KALYAN", Session: "open", Pattern: "123"})); err != nil {
		t.Fatal(err)
	}
	if len(d.calls) != 2 || len(dlq.msgs) != 0 {
		t.Errorf("calls = %d, dlq = %d; want 2/0", len(d.calls), len(dlq.msgs))
	}
	if len(stages) != 1 || stages[0] != "declare" {
		t.Errorf("error stages = %v, want [declare]", stages)
	}
}

func TestHandle_DLQFailureKeepsMessage(t *testing.T) {
	p := newProcessor(&fakeDeclarer{}, &fakeWriter{err: errors.New("broker down")})
	if err := p.Handle(context.Background(), kafka.Message{Value: []byte("garbage")}); err == nil {
		t.Error("Handle() error = nil, want dlq failure")
	}
}

func TestRun_CommitsHandledMessages(t *testing.T) {
	d := &fakeDeclarer{markets: map[string]string{"KALYAN": "m-1"}}
	r := &fakeReader{queue: []kafka.Message{
		msg(t, 10, events.ResultDetected{MarketName: "KALYAN", Session: "open", Pattern: "123"}),
		{Offset: 11, Value: []byte("garbage")},
	}}
	p := newProcessor(d, &fakeWriter{})
	p.Reader = r
	var consumed int
	var mu sync.Mutex
	p.OnConsumed = func() { mu.Lock(); consumed++; mu.Unlock() }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		n := len(r.committed)
		r.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("messages not committed in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if r.committed[0] != 10 || r.committed[1] != 11 {
		t.Errorf("committed = %v, want [10 11]", r.committed)
	}
	if consumed != 2 {
		t.Errorf("consumed = %d, want 2", consumed)
	}
}

// waitCommitted espera n commits no reader.
func waitCommitted(t *testing.T, r *fakeReader, n int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		r.mu.Lock()
		got := len(r.committed)
		r.mu.Unlock()
		if got >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("committed %d messages, want %d", got, n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRun_RetriesSameMessageUntilHandled(t *testing.T) {
	d := &fakeDeclarer{markets: map[string]string{"KALYAN": "m-1"}}
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 20, Value: []byte("garbage")},
		msg(t, 21, events.ResultDetected{MarketName: "KALYAN", Session: "open", Pattern: "123"}),
	}}
	dlq := &fakeWriter{failures: 2}
	p := newProcessor(d, dlq)
	p.Reader = r
	var mu sync.Mutex
	stages := map[string]int{}
	p.OnError = func(stage string) { mu.Lock(); stages[stage]++; mu.Unlock() }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	waitCommitted(t, r, 2)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	r.mu.Lock()
	committed := append([]int64(nil), r.committed...)
	r.mu.Unlock()
	if len(committed) != 2 || committed[0] != 20 || committed[1] != 21 {
		t.Errorf("committed = %v, want [20 21]", committed)
	}
	dlq.mu.Lock()
	if len(dlq.msgs) != 1 {
		t.Errorf("dlq messages = %d, want 1", len(dlq.msgs))
	}
	dlq.mu.Unlock()
	mu.Lock()
	if stages["handle"] != 2 {
		t.Errorf("handle retries = %d, want 2", stages["handle"])
	}
	mu.Unlock()
	if len(d.calls) != 1 {
		t.Errorf("declare calls = %d, want 1", len(d.calls))
	}
}

func TestRun_StopsRetryingOnCancel(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 30, Value: []byte("garbage")}}}
	p := newProcessor(&fakeDeclarer{}, &fakeWriter{err: errors.New("broker down")})
	p.Reader = r

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
	if len(r.committed) != 0 {
		t.Errorf("committed = %v, want none", r.committed)
	}
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
