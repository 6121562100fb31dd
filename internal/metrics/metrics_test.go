package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(SyncEventsRelayed.WithLabelValues("seek"))
	RecordSyncEventRelayed("seek")
	assert.Equal(t, before+1, testutil.ToFloat64(SyncEventsRelayed.WithLabelValues("seek")))

	before = testutil.ToFloat64(SyncEventsRejected.WithLabelValues("controls_locked"))
	RecordSyncEventRejected("controls_locked")
	assert.Equal(t, before+1, testutil.ToFloat64(SyncEventsRejected.WithLabelValues("controls_locked")))

	before = testutil.ToFloat64(RoomJoins.WithLabelValues("room_full"))
	RecordJoin("room_full")
	assert.Equal(t, before+1, testutil.ToFloat64(RoomJoins.WithLabelValues("room_full")))

	before = testutil.ToFloat64(BestEffortFailures.WithLabelValues("persist_snapshot"))
	RecordBestEffortFailure("persist_snapshot")
	assert.Equal(t, before+1, testutil.ToFloat64(BestEffortFailures.WithLabelValues("persist_snapshot")))

	ObserveWSMessage("ALIVE", time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(WSMessageDuration, "watchroom_ws_message_duration_seconds"))
}
