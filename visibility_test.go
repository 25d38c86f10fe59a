package goAuthForm

import "testing"

func TestStaticVisibility(t *testing.T) {
	if !StaticVisibility(true).Visible() {
		t.Fatal("static true not visible")
	}
	if StaticVisibility(false).Visible() {
		t.Fatal("static false visible")
	}
	if StaticVisibility(true).Updates() != nil {
		t.Fatal("static signal must not publish updates")
	}
}

func TestSwitchableVisibilitySet(t *testing.T) {
	v := NewSwitchableVisibility(false)
	if v.Visible() {
		t.Fatal("initial state wrong")
	}

	v.Set(true)
	if !v.Visible() {
		t.Fatal("set not applied")
	}
	select {
	case got := <-v.Updates():
		if !got {
			t.Fatal("wrong transition value")
		}
	default:
		t.Fatal("transition not published")
	}

	// Redundant set publishes nothing.
	v.Set(true)
	select {
	case <-v.Updates():
		t.Fatal("redundant set published a transition")
	default:
	}
}

func TestSwitchableVisibilitySetNeverBlocks(t *testing.T) {
	v := NewSwitchableVisibility(false)
	// Flood well past the buffer without draining. Set must not block and the
	// final Visible read must reflect the last call.
	for i := 0; i < 100; i++ {
		v.Set(i%2 == 0)
	}
	if v.Visible() {
		t.Fatal("final state must be hidden")
	}
}
