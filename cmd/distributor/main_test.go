package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"recruitfluency/internal/scheduler"
	"recruitfluency/internal/types"
)

// =============================================================================
// Mock implementations
// =============================================================================

type mockDistributor struct {
	called bool
	gotNow time.Time
	gotRun string
	result scheduler.RunResult
	err    error
}

func (m *mockDistributor) RunDistribution(ctx context.Context, now time.Time) (scheduler.RunResult, error) {
	m.called = true
	m.gotNow = now
	m.gotRun = types.GetRunID(ctx)
	return m.result, m.err
}

type mockLocker struct {
	acquired   bool
	acquireErr error
	releaseErr error

	acquireCalls []string
	released     []string
	ttl          time.Duration
}

func (m *mockLocker) Acquire(_ context.Context, lockID, workerID string, ttl time.Duration) (bool, error) {
	m.acquireCalls = append(m.acquireCalls, lockID+"@"+workerID)
	m.ttl = ttl
	return m.acquired, m.acquireErr
}

func (m *mockLocker) Release(_ context.Context, lockID, workerID string) error {
	m.released = append(m.released, lockID+"@"+workerID)
	return m.releaseErr
}

type mockHistorian struct {
	startID   int64
	startErr  error
	finishErr error

	started      []string
	finishStatus string
	finishItems  int
	finishErrArg error
	finished     bool
}

func (m *mockHistorian) Start(_ context.Context, jobType string) (int64, error) {
	m.started = append(m.started, jobType)
	return m.startID, m.startErr
}

func (m *mockHistorian) Finish(_ context.Context, _ int64, status string, items int, err error) error {
	m.finished = true
	m.finishStatus = status
	m.finishItems = items
	m.finishErrArg = err
	return m.finishErr
}

func newTestHandler(d *mockDistributor, l *mockLocker, hist *mockHistorian, buf *bytes.Buffer) *Handler {
	var logger *slog.Logger
	if buf != nil {
		logger = slog.New(slog.NewJSONHandler(buf, nil))
	}
	h := &Handler{
		Distributor: d,
		JobHistory:  hist,
		WorkerID:    "worker-1",
		LockTTL:     2 * time.Hour,
		Logger:      logger,
		Now:         func() time.Time { return time.Date(2026, 3, 15, 7, 0, 0, 0, time.UTC) },
	}
	if l != nil {
		h.JobLock = l
	}
	return h
}

// =============================================================================
// Tests
// =============================================================================

func TestHandle_Success(t *testing.T) {
	d := &mockDistributor{result: scheduler.RunResult{State: scheduler.StateDone, CoachesProcessed: 3, RecordsCommitted: 12}}
	l := &mockLocker{acquired: true}
	hist := &mockHistorian{startID: 7}
	h := newTestHandler(d, l, hist, nil)

	got, err := h.Handle(context.Background(), scheduler.JobPayload{Task: scheduler.TaskDistributeAthletes})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.Contains(got, "DONE") || !strings.Contains(got, "12 records committed") {
		t.Errorf("result = %q", got)
	}
	if !d.called || d.gotRun == "" {
		t.Error("distributor should run with a run id in context")
	}
	if len(l.acquireCalls) != 1 || l.acquireCalls[0] != "distribute_athletes@worker-1" {
		t.Errorf("acquire calls = %v", l.acquireCalls)
	}
	if l.ttl != 2*time.Hour {
		t.Errorf("lock ttl = %v", l.ttl)
	}
	if len(l.released) != 1 {
		t.Errorf("lock should be released once, got %v", l.released)
	}
	if !hist.finished || hist.finishStatus != "success" || hist.finishItems != 12 {
		t.Errorf("history finish = %+v", hist)
	}
}

func TestHandle_EmptyTaskDefaultsToDistribution(t *testing.T) {
	d := &mockDistributor{result: scheduler.RunResult{State: scheduler.StateDone}}
	h := newTestHandler(d, nil, &mockHistorian{startID: 1}, nil)

	if _, err := h.Handle(context.Background(), scheduler.JobPayload{}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !d.called {
		t.Error("distributor not called")
	}
}

func TestHandle_UnknownTask(t *testing.T) {
	d := &mockDistributor{}
	h := newTestHandler(d, &mockLocker{acquired: true}, &mockHistorian{}, nil)

	_, err := h.Handle(context.Background(), scheduler.JobPayload{Task: "archive_everything"})
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeValidationTask {
		t.Fatalf("error = %v, want %s", err, types.ErrCodeValidationTask)
	}
	if d.called {
		t.Error("distributor should not run for an unknown task")
	}
}

func TestHandle_ReferenceTimeOverridesClock(t *testing.T) {
	d := &mockDistributor{result: scheduler.RunResult{State: scheduler.StateDone}}
	h := newTestHandler(d, nil, &mockHistorian{}, nil)
	ref := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)

	if _, err := h.Handle(context.Background(), scheduler.JobPayload{ReferenceTime: &ref}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !d.gotNow.Equal(ref) {
		t.Errorf("now = %v, want %v", d.gotNow, ref)
	}
}

func TestHandle_LockHeldSkips(t *testing.T) {
	var buf bytes.Buffer
	d := &mockDistributor{}
	l := &mockLocker{acquired: false}
	hist := &mockHistorian{startID: 1}
	h := newTestHandler(d, l, hist, &buf)

	got, err := h.Handle(context.Background(), scheduler.JobPayload{})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.HasPrefix(got, "skipped:") {
		t.Errorf("result = %q, want skipped", got)
	}
	if d.called {
		t.Error("distributor should not run while the lock is held")
	}
	if len(hist.started) != 0 {
		t.Error("history should not start for a skipped run")
	}
	if len(l.released) != 0 {
		t.Error("a lock we do not own must not be released")
	}
}

func TestHandle_LockError(t *testing.T) {
	d := &mockDistributor{}
	l := &mockLocker{acquireErr: errors.New("connection refused")}
	h := newTestHandler(d, l, &mockHistorian{}, nil)

	_, err := h.Handle(context.Background(), scheduler.JobPayload{})
	if !errors.Is(err, l.acquireErr) {
		t.Fatalf("error = %v, want wrapped acquire error", err)
	}
	if d.called {
		t.Error("distributor should not run without the lock")
	}
}

func TestHandle_RunFailureRecordedAndReturned(t *testing.T) {
	runErr := errors.New("listing pending coaches: timeout")
	d := &mockDistributor{
		result: scheduler.RunResult{State: scheduler.StateTerminatedWithError, Offset: 300, RecordsCommitted: 40},
		err:    runErr,
	}
	l := &mockLocker{acquired: true}
	hist := &mockHistorian{startID: 9}
	h := newTestHandler(d, l, hist, nil)

	_, err := h.Handle(context.Background(), scheduler.JobPayload{})
	if !errors.Is(err, runErr) {
		t.Fatalf("error = %v, want wrapped run error", err)
	}
	if !strings.Contains(err.Error(), "TERMINATED_WITH_ERROR at offset 300") {
		t.Errorf("error = %q, want state and offset", err)
	}
	if hist.finishStatus != "failed" || hist.finishItems != 40 || !errors.Is(hist.finishErrArg, runErr) {
		t.Errorf("history finish = %+v", hist)
	}
	if len(l.released) != 1 {
		t.Error("lock must be released after a failed run")
	}
}

func TestHandle_HistoryStartFailureIsNonFatal(t *testing.T) {
	d := &mockDistributor{result: scheduler.RunResult{State: scheduler.StateDone}}
	hist := &mockHistorian{startErr: errors.New("insert failed")}
	h := newTestHandler(d, nil, hist, nil)

	if _, err := h.Handle(context.Background(), scheduler.JobPayload{}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !d.called {
		t.Error("distributor should still run")
	}
	if hist.finished {
		t.Error("Finish should be skipped when Start failed")
	}
}

func TestHandle_ReleaseFailureLogged(t *testing.T) {
	var buf bytes.Buffer
	d := &mockDistributor{result: scheduler.RunResult{State: scheduler.StateDone}}
	l := &mockLocker{acquired: true, releaseErr: errors.New("gone")}
	h := newTestHandler(d, l, &mockHistorian{startID: 1}, &buf)

	if _, err := h.Handle(context.Background(), scheduler.JobPayload{}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.Contains(buf.String(), "failed to release job lock") {
		t.Errorf("log = %s", buf.String())
	}
}

func TestRunLocal(t *testing.T) {
	d := &mockDistributor{result: scheduler.RunResult{State: scheduler.StateDone}}
	h := newTestHandler(d, nil, &mockHistorian{}, nil)
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	if code := runLocal(context.Background(), h, strings.NewReader(""), logger); code != 0 {
		t.Errorf("empty stdin exit code = %d, want 0", code)
	}
	if code := runLocal(context.Background(), h, strings.NewReader(`{"task":"distribute_athletes"}`), logger); code != 0 {
		t.Errorf("valid payload exit code = %d, want 0", code)
	}
	if code := runLocal(context.Background(), h, strings.NewReader(`{not json`), logger); code != 1 {
		t.Errorf("bad payload exit code = %d, want 1", code)
	}
}

// failingPool satisfies txPool, records the transaction options and fails
// every BeginTx.
type failingPool struct {
	err    error
	gotOpt *pgx.TxOptions
}

func (p failingPool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, p.err
}
func (p failingPool) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, p.err }
func (p failingPool) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (p failingPool) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if p.gotOpt != nil {
		*p.gotOpt = opts
	}
	return nil, p.err
}

func TestPGStore_BeginError(t *testing.T) {
	cause := errors.New("too many connections")
	store := newPGStore(failingPool{err: cause})

	_, err := store.BeginTx(context.Background())
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeInternalDB {
		t.Fatalf("error = %v, want %s", err, types.ErrCodeInternalDB)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be wrapped")
	}
}

func TestPGStore_BeginsRepeatableRead(t *testing.T) {
	var got pgx.TxOptions
	store := newPGStore(failingPool{err: errors.New("refused"), gotOpt: &got})

	_, _ = store.BeginTx(context.Background())
	if got.IsoLevel != pgx.RepeatableRead {
		t.Errorf("isolation = %q, want %q", got.IsoLevel, pgx.RepeatableRead)
	}
}
