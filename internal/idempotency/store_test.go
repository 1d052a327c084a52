package idempotency

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAndMarkFirstDelivery(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	seen, reply := s.CheckAndMark("slack:C1:1724400000.000100", time.Minute)
	assert.False(t, seen)
	assert.Empty(t, reply)
}

func TestDuplicateDeliveryReturnsCachedReply(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	token := "slack:C1:1724400000.000100"
	seen, _ := s.CheckAndMark(token, time.Minute)
	require.False(t, seen)

	s.RecordReply(token, "Kaydedildi: SUP-001")

	seen, reply := s.CheckAndMark(token, time.Minute)
	assert.True(t, seen)
	assert.Equal(t, "Kaydedildi: SUP-001", reply)
}

func TestExpiredTokenIsFreshAgain(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	token := "tg:42:77"
	seen, _ := s.CheckAndMark(token, -time.Second)
	require.False(t, seen)

	seen, _ = s.CheckAndMark(token, time.Minute)
	assert.False(t, seen, "expired token must be treated as new")
}

func TestRecordReplyUnknownTokenIsNoop(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	s.RecordReply("never-marked", "x")

	seen, _ := s.CheckAndMark("never-marked", time.Minute)
	assert.False(t, seen)
}

func TestPrune(t *testing.T) {
	s, err := NewStore("")
	require.NoError(t, err)

	s.CheckAndMark("old", -time.Second)
	s.CheckAndMark("live", time.Minute)

	assert.Equal(t, 1, s.Prune())

	seen, _ := s.CheckAndMark("live", time.Minute)
	assert.True(t, seen)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idempotency.json")

	s1, err := NewStore(path)
	require.NoError(t, err)
	s1.CheckAndMark("token-1", time.Hour)
	s1.RecordReply("token-1", "done")
	require.NoError(t, s1.Save())

	s2, err := NewStore(path)
	require.NoError(t, err)
	seen, reply := s2.CheckAndMark("token-1", time.Hour)
	assert.True(t, seen)
	assert.Equal(t, "done", reply)
}
