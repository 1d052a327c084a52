package executor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ergcontrols/sahabot/internal/audit"
	saherrors "github.com/ergcontrols/sahabot/internal/errors"
	"github.com/ergcontrols/sahabot/internal/registry"
	"github.com/ergcontrols/sahabot/internal/workbook"
)

// flakyStore wraps a real file store and fails the first N AppendSupport
// calls with a transient error.
type flakyStore struct {
	workbook.Store
	failures int
	calls    int
}

func (f *flakyStore) AppendSupport(ctx context.Context, row workbook.Row) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", saherrors.Transient("connection reset")
	}
	return f.Store.AppendSupport(ctx, row)
}

type memSink struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *memSink) Write(ctx context.Context, rec audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memSink) outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.Outcome
	}
	return out
}

func newTestExecutor(t *testing.T) (*Executor, workbook.Store, *memSink) {
	t.Helper()
	store, err := workbook.NewFileStore(t.TempDir()+"/workbook.json", workbook.FileOptions{})
	require.NoError(t, err)
	sink := &memSink{}
	return New(store, sink), store, sink
}

func seedSite(t *testing.T, store workbook.Store) {
	t.Helper()
	require.NoError(t, store.CreateSite(context.Background(), workbook.Row{
		"site_id": "MIG-TR-01", "customer": "Migros",
	}))
}

func TestCommitLogSupport(t *testing.T) {
	ctx := context.Background()
	exec, store, sink := newTestExecutor(t)
	seedSite(t, store)

	res, err := exec.Commit(ctx, CommitRequest{
		Operation: registry.OpLogSupport,
		Fields: map[string]string{
			"site_id":       "MIG-TR-01",
			"received_date": "2026-08-20",
			"status":        "Open",
			"issue_summary": "gateway offline",
		},
		Actor:    "U1",
		RawInput: "migros gateway düştü",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUP-001", res.TicketID)

	// last_verified on the site follows the visit date.
	sites, err := store.ReadSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-20", sites[0]["last_verified"])

	assert.Equal(t, []string{audit.OutcomeCommitted}, sink.outcomes())
	assert.Equal(t, "SUP-001", sink.records[0].TicketID)
	assert.Equal(t, "gateway offline", sink.records[0].Summary)
}

func TestCommitRetriesTransientOnce(t *testing.T) {
	ctx := context.Background()
	store, err := workbook.NewFileStore(t.TempDir()+"/workbook.json", workbook.FileOptions{})
	require.NoError(t, err)
	seedSite(t, store)

	flaky := &flakyStore{Store: store, failures: 1}
	sink := &memSink{}
	exec := New(flaky, sink)

	res, err := exec.Commit(ctx, CommitRequest{
		Operation: registry.OpLogSupport,
		Fields:    map[string]string{"site_id": "MIG-TR-01", "received_date": "2026-08-20", "status": "Open"},
		Actor:     "U1",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUP-001", res.TicketID)
	assert.Equal(t, 2, flaky.calls)
	assert.Equal(t, []string{audit.OutcomeFailed, audit.OutcomeCommitted}, sink.outcomes())
}

func TestCommitGivesUpAfterSecondTransientFailure(t *testing.T) {
	ctx := context.Background()
	store, err := workbook.NewFileStore(t.TempDir()+"/workbook.json", workbook.FileOptions{})
	require.NoError(t, err)

	flaky := &flakyStore{Store: store, failures: 5}
	sink := &memSink{}
	exec := New(flaky, sink)

	_, err = exec.Commit(ctx, CommitRequest{
		Operation: registry.OpLogSupport,
		Fields:    map[string]string{"site_id": "MIG-TR-01"},
		Actor:     "U1",
	})
	assert.True(t, saherrors.IsCategory(err, saherrors.ErrTransient))
	assert.Equal(t, 2, flaky.calls, "exactly one retry")
	assert.Equal(t, []string{audit.OutcomeFailed, audit.OutcomeFailed}, sink.outcomes())
}

func TestCommitDoesNotRetryNotFound(t *testing.T) {
	ctx := context.Background()
	exec, _, sink := newTestExecutor(t)

	_, err := exec.Commit(ctx, CommitRequest{
		Operation: registry.OpUpdateSite,
		Fields:    map[string]string{"site_id": "XXX-TR-99", "city": "Ankara"},
		Actor:     "U1",
	})
	assert.True(t, saherrors.IsCategory(err, saherrors.ErrNotFound))
	assert.Equal(t, []string{audit.OutcomeFailed}, sink.outcomes(), "not-found must not be retried")
}

func TestCommitUpdateSupportTargetsLatestUnresolved(t *testing.T) {
	ctx := context.Background()
	exec, store, _ := newTestExecutor(t)
	seedSite(t, store)

	_, err := store.AppendSupport(ctx, workbook.Row{"site_id": "MIG-TR-01", "status": "Open"})
	require.NoError(t, err)

	_, err = exec.Commit(ctx, CommitRequest{
		Operation: registry.OpUpdateSupport,
		Fields: map[string]string{
			"site_id":       "MIG-TR-01",
			"status":        "Resolved",
			"resolved_date": "2026-08-21",
			"resolution":    "Replaced antenna",
			"root_cause":    "HW Fault (Customer)",
		},
		Actor: "U1",
	})
	require.NoError(t, err)

	rows, err := store.ReadSupport(ctx, "MIG-TR-01")
	require.NoError(t, err)
	assert.Equal(t, "Resolved", rows[0]["status"])
	assert.Equal(t, "MIG-TR-01", rows[0]["site_id"], "site_id is not clobbered by the update")
}

func TestCommitBulkHardwareEntries(t *testing.T) {
	ctx := context.Background()
	exec, store, _ := newTestExecutor(t)
	seedSite(t, store)

	res, err := exec.Commit(ctx, CommitRequest{
		Operation: registry.OpUpdateHardware,
		Fields:    map[string]string{"site_id": "MIG-TR-01", "install_date": "2026-08-20"},
		Entries: []map[string]string{
			{"device_type": "Gateway", "qty": "1"},
			{"device_type": "Dispenser", "qty": "12"},
		},
		Actor: "U1",
		Today: "2026-08-24",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)

	rows, err := store.ReadHardware(ctx, "MIG-TR-01")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08-20", rows[1]["install_date"], "shared fields reach every entry")
	assert.Equal(t, "Dispenser", rows[1]["device_type"])

	sites, err := store.ReadSites(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", sites[0]["last_verified"])
}

func TestCommitRejectsTransparentOperation(t *testing.T) {
	ctx := context.Background()
	exec, _, _ := newTestExecutor(t)

	_, err := exec.Commit(ctx, CommitRequest{Operation: registry.OpQuery, Actor: "U1"})
	assert.True(t, saherrors.IsCategory(err, saherrors.ErrInternal))
}

func TestRecordCancelledAndSkipped(t *testing.T) {
	ctx := context.Background()
	exec, _, sink := newTestExecutor(t)

	exec.RecordCancelled(ctx, registry.OpLogSupport, "U1", "vazgeç")
	exec.RecordSkipped(ctx, registry.OpUpdateHardware, "U1", "MIG-TR-01")

	require.Len(t, sink.records, 2)
	assert.Equal(t, audit.OutcomeCancelled, sink.records[0].Outcome)
	assert.Equal(t, audit.OutcomeSkipped, sink.records[1].Outcome)
	assert.Equal(t, "MIG-TR-01", sink.records[1].SiteID)
}
