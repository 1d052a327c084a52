package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLSinkAppendsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)

	ctx := context.Background()

	rec1 := NewRecord("U123", "log_support", OutcomeCommitted)
	rec1.SiteID = "MIG-TR-01"
	rec1.TicketID = "SUP-001"
	require.NoError(t, sink.Write(ctx, rec1))

	rec2 := NewRecord("U123", "log_support", OutcomeCancelled)
	require.NoError(t, sink.Write(ctx, rec2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, OutcomeCommitted, records[0].Outcome)
	assert.Equal(t, "SUP-001", records[0].TicketID)
	assert.Equal(t, OutcomeCancelled, records[1].Outcome)
	assert.NotEqual(t, records[0].ID, records[1].ID)
}

func TestNewRecordStampsULIDAndTime(t *testing.T) {
	rec := NewRecord("U1", "create_site", OutcomeFailed)
	assert.Len(t, rec.ID, 26)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Equal(t, "create_site", rec.Operation)
}
