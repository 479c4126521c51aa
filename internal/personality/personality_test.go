package personality

import (
	"testing"

	"github.com/0mdb/robot-buddy-supervisor/internal/mcu"
)

func TestFireBootQueuesOnce(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	e.FireBoot()
	snap1 := e.Tick1Hz(1.0)
	e.FireBoot() // no-op
	if snap1.Valence <= 0 && snap1.Arousal <= 0 {
		t.Fatalf("expected boot impulse to move affect vector, got %+v", snap1)
	}
}

func TestConversationGatesNegativeMood(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	e.vector.Valence = -0.65
	e.vector.Arousal = -0.45
	e.currentMood = mcu.MoodSad
	snap := e.Tick1Hz(0.01)
	if snap.Mood != mcu.MoodNeutral {
		t.Fatalf("expected negative mood gated to NEUTRAL outside conversation, got %v", snap.Mood)
	}
}

func TestConversationAllowsNegativeMoodDuringActive(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	e.OnConversationStarted("")
	e.vector.Valence = -0.65
	e.vector.Arousal = -0.45
	e.currentMood = mcu.MoodSad
	snap := e.Tick1Hz(0.01)
	if snap.Mood != mcu.MoodSad {
		t.Fatalf("expected SAD allowed during conversation, got %v", snap.Mood)
	}
	if snap.Intensity > 0.70+1e-9 {
		t.Fatalf("expected intensity capped at 0.70, got %v", snap.Intensity)
	}
}

func TestDurationCapFiresRecoveryImpulse(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	e.OnConversationStarted("")
	e.vector.Valence = -0.65
	e.vector.Arousal = -0.45
	e.currentMood = mcu.MoodSad
	var last Snapshot
	for i := 0; i < 6; i++ {
		last = e.Tick1Hz(1.0)
	}
	if last.Mood == mcu.MoodSad && e.negativeMoodTimerS > 4.0 {
		t.Fatalf("expected duration cap to have reset the timer by now, got %+v timer=%v", last, e.negativeMoodTimerS)
	}
}

func TestIdleStateClassification(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	snap := e.Tick1Hz(301)
	if snap.IdleState != "drowsy" {
		t.Fatalf("expected drowsy after 301s idle, got %v", snap.IdleState)
	}
}

func TestButtonPressCooldown(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	_, fired := e.OnButtonPress()
	if !fired {
		t.Fatal("expected first button press to fire")
	}
	_, fired = e.OnButtonPress()
	if fired {
		t.Fatal("expected second immediate button press to be on cooldown")
	}
}

func TestAIEmotionUnknownLabelNoOp(t *testing.T) {
	e := New(0.4, 0.5, 0.3, 0.35, 0.75, nil)
	e.idleTimerS = 42
	before := e.vector
	e.OnAIEmotion("not-a-real-emotion", 0.8)
	if e.vector != before {
		t.Fatalf("expected unknown label to leave affect vector unchanged, got %+v vs %+v", e.vector, before)
	}
	if e.idleTimerS != 42 {
		t.Fatalf("expected unknown label to leave idle timer untouched, got %v", e.idleTimerS)
	}
	if len(e.pending) != 0 {
		t.Fatalf("expected unknown label to queue no impulse, got %+v", e.pending)
	}
}
