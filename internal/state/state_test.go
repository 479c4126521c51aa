package state

import (
	"sync"
	"testing"
)

func TestNewWorldStartsWithVisionUnknownAndEmptyWorkers(t *testing.T) {
	w := NewWorld()
	if w.ClearConfidence != ClearConfidenceUnknown {
		t.Fatalf("ClearConfidence = %v, want %v", w.ClearConfidence, ClearConfidenceUnknown)
	}
	if w.Workers == nil {
		t.Fatal("Workers map should be initialized, not nil")
	}
}

func TestWorldVisionAgeMSReportsUnreceivedAsNegativeOne(t *testing.T) {
	w := NewWorld()
	if got := w.VisionAgeMS(1000); got != -1 {
		t.Fatalf("VisionAgeMS before first frame = %d, want -1", got)
	}
	w.Update(func(w *World) { w.VisionRxMonoMS = 400 })
	if got := w.VisionAgeMS(1000); got != 600 {
		t.Fatalf("VisionAgeMS = %d, want 600", got)
	}
}

func TestWorldBothAudioLinksUpRequiresBoth(t *testing.T) {
	w := NewWorld()
	if w.BothAudioLinksUp() {
		t.Fatal("expected false with no links up")
	}
	w.Update(func(w *World) { w.MicLinkUp = true })
	if w.BothAudioLinksUp() {
		t.Fatal("expected false with only mic link up")
	}
	w.Update(func(w *World) { w.SpkLinkUp = true })
	if !w.BothAudioLinksUp() {
		t.Fatal("expected true with both links up")
	}
}

func TestWorldSnapshotCopiesWorkersMapIndependently(t *testing.T) {
	w := NewWorld()
	w.Update(func(w *World) { w.Workers["vision"] = WorkerStatus{Alive: true} })

	snap := w.Snapshot()
	w.Update(func(w *World) { w.Workers["vision"] = WorkerStatus{Alive: false} })

	if !snap.Workers["vision"].Alive {
		t.Fatal("snapshot's Workers map should be unaffected by later mutation")
	}
}

func TestWorldSnapshotIsSafeUnderConcurrentUpdate(t *testing.T) {
	w := NewWorld()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			w.Update(func(w *World) { w.FrameSeq++ })
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = w.Snapshot()
		}
	}()
	wg.Wait()
	if got := w.Snapshot().FrameSeq; got != 200 {
		t.Fatalf("FrameSeq = %d, want 200", got)
	}
}

func TestRobotResetAndAddSpeedCapAccumulatesTrace(t *testing.T) {
	r := NewRobot()
	r.Update(func(r *Robot) {
		r.AddSpeedCap(1.0, "nominal")
		r.AddSpeedCap(0.5, "obstacle")
	})
	snap := r.Snapshot()
	if len(snap.SpeedCaps) != 2 {
		t.Fatalf("SpeedCaps len = %d, want 2", len(snap.SpeedCaps))
	}
	if snap.SpeedCaps[1].Reason != "obstacle" {
		t.Fatalf("SpeedCaps[1].Reason = %q, want %q", snap.SpeedCaps[1].Reason, "obstacle")
	}

	r.Update(func(r *Robot) { r.ResetSpeedCaps() })
	if got := r.Snapshot().SpeedCaps; len(got) != 0 {
		t.Fatalf("SpeedCaps after reset = %v, want empty", got)
	}
}

func TestRobotSnapshotSpeedCapsAreIndependentOfLiveSlice(t *testing.T) {
	r := NewRobot()
	r.Update(func(r *Robot) { r.AddSpeedCap(1.0, "nominal") })
	snap := r.Snapshot()

	r.Update(func(r *Robot) { r.AddSpeedCap(0.2, "tilt") })
	if len(snap.SpeedCaps) != 1 {
		t.Fatalf("earlier snapshot's SpeedCaps should not observe later appends, got %v", snap.SpeedCaps)
	}
}

func TestNewRobotStartsClocksUnsynced(t *testing.T) {
	r := NewRobot()
	snap := r.Snapshot()
	if snap.MotionClock.State != Unsynced || snap.FaceClock.State != Unsynced {
		t.Fatalf("expected both clocks Unsynced, got motion=%v face=%v", snap.MotionClock.State, snap.FaceClock.State)
	}
}

func TestFaultNamesReturnsOnlySetBitsInDeclarationOrder(t *testing.T) {
	f := FaultTilt | FaultObstacle
	got := f.Names()
	want := []string{"TILT", "OBSTACLE"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIsMotionModeOnlyTrueForTeleopAndWander(t *testing.T) {
	cases := map[Mode]bool{
		Boot: false, Idle: false, Teleop: true, Wander: true, Error: false,
	}
	for mode, want := range cases {
		if got := IsMotionMode(mode); got != want {
			t.Fatalf("IsMotionMode(%s) = %v, want %v", mode, got, want)
		}
	}
}

func TestTwistZero(t *testing.T) {
	if !(Twist{}).Zero() {
		t.Fatal("zero-value Twist should report Zero() == true")
	}
	if (Twist{VmmS: 1}).Zero() {
		t.Fatal("nonzero VmmS should report Zero() == false")
	}
}

func TestRangeStatusString(t *testing.T) {
	if got := RangeOutOfRange.String(); got != "OUT_OF_RANGE" {
		t.Fatalf("RangeOutOfRange.String() = %q, want %q", got, "OUT_OF_RANGE")
	}
	if got := RangeStatus(255).String(); got != "UNKNOWN" {
		t.Fatalf("RangeStatus(255).String() = %q, want %q", got, "UNKNOWN")
	}
}
