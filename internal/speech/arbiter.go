// Package speech implements priority-preemption speech arbitration and
// the event-driven speech policy (spec.md §5, §4.16 step 10), grounded
// in _examples/original_source/supervisor_v2/core/speech_policy.py for
// the policy half; the arbiter itself is a direct implementation of the
// ordering rule spec.md states in §5 (no original_source counterpart).
package speech

// Intent is one candidate spoken utterance competing for the single
// speech channel.
type Intent struct {
	Text     string
	Source   string
	Priority int
	TMonoMS  int64
}

// Arbiter holds the in-flight intent, if any, and decides whether a new
// intent preempts it (spec.md §5: "lower number wins; a lower-priority
// in-flight utterance is canceled when a higher arrives; equal-or-higher
// arrivals are dropped while another is speaking").
type Arbiter struct {
	current *Intent
}

// NewArbiter returns an Arbiter with no in-flight utterance.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// Current returns the in-flight intent, or false if the channel is idle.
func (a *Arbiter) Current() (Intent, bool) {
	if a.current == nil {
		return Intent{}, false
	}
	return *a.current, true
}

// Submit offers a new intent. accepted reports whether it becomes (or
// stays) the in-flight utterance; preempted is the intent it canceled,
// if any.
func (a *Arbiter) Submit(in Intent) (accepted bool, preempted Intent, didPreempt bool) {
	if a.current == nil {
		a.current = &in
		return true, Intent{}, false
	}
	if in.Priority < a.current.Priority {
		prev := *a.current
		a.current = &in
		return true, prev, true
	}
	return false, Intent{}, false
}

// Finish clears the in-flight utterance; called on TTS finished,
// cancelled, or error lifecycle events.
func (a *Arbiter) Finish() {
	a.current = nil
}

// Speaking reports whether an utterance is currently in flight.
func (a *Arbiter) Speaking() bool {
	return a.current != nil
}
