package journey

import "testing"

func TestStageNames(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageRunning, "running"},
		{StageWaitForReadConcern, "waitForReadConcern"},
		{StageWaitForWriteConcern, "waitForWriteConcern"},
		{StageReadMirroring, "readMirroring"},
		{StageCheckAuthorization, "checkAuthorization"},
		{StageExtractReadConcern, "extractReadConcern"},
		{StageAcquireDbLock, "acquireDbLock"},
		{StageComputeAndGossipOpTime, "computeAndGossipOpTime"},
		{StageEgress, "egress"},
		{StageReleased, "released"},
		{StageDestroyed, "destroyed"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.want)
		}
	}
	if len(tests) != int(StageDestroyed)+1 {
		t.Errorf("name table covers %d stages, enumeration has %d", len(tests), StageDestroyed+1)
	}
}

func TestStageValid(t *testing.T) {
	if !StageRunning.Valid() || !StageDestroyed.Valid() {
		t.Error("bounds reported invalid")
	}
	if Stage(-1).Valid() || (StageDestroyed + 1).Valid() {
		t.Error("out-of-range stage reported valid")
	}
}

func TestTrackingToggle(t *testing.T) {
	orig := TrackingEnabled()
	t.Cleanup(func() { SetTrackingEnabled(orig) })

	SetTrackingEnabled(true)
	if !TrackingEnabled() {
		t.Error("tracking not enabled")
	}
	SetTrackingEnabled(false)
	if TrackingEnabled() {
		t.Error("tracking not disabled")
	}
}
