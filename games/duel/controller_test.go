package duel

import (
	"testing"
	"time"
)

func newVoiceHarness(t *testing.T, cfg Config, answers ...string) (*harness, *Controller) {
	t.Helper()

	h := newHarness(t, cfg, testCategory(answers...))
	h.s.Start()

	return h, NewController(h.s, nil)
}

func TestVoiceFinalPassFiresOnce(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("pas")
	if !c.PassPending() {
		t.Fatal("interim pass did not start confirmation")
	}

	c.OnFinal("pas")
	if c.PassPending() {
		t.Error("final pass left the confirmation pending")
	}

	h.clock.Advance(180 * time.Millisecond)
	c.OnFinal("pas")

	if h.s.PassCount() != 1 {
		t.Fatalf("expected exactly one pass, got %d", h.s.PassCount())
	}
	if fb, _ := h.s.Feedback(); fb.Source != SourceVoice {
		t.Errorf("pass not tagged as voice: %+v", fb)
	}
}

func TestVoiceInterimPassConfirmsAfterDebounce(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("pas")
	h.clock.Advance(179 * time.Millisecond)
	if h.s.PassCount() != 0 {
		t.Fatal("pass fired before the debounce elapsed")
	}

	h.clock.Advance(time.Millisecond)
	if h.s.PassCount() != 1 {
		t.Fatalf("expected pass after debounce, got %d", h.s.PassCount())
	}

	c.OnFinal("pas")
	if h.s.PassCount() != 1 {
		t.Errorf("final after confirmed interim passed again: %d", h.s.PassCount())
	}
}

func TestVoiceInterimPassNotRestarted(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("pas")
	h.clock.Advance(100 * time.Millisecond)
	c.OnInterim("Pas.")
	h.clock.Advance(80 * time.Millisecond)

	if h.s.PassCount() != 1 {
		t.Fatalf("expected the original debounce to fire, got %d passes", h.s.PassCount())
	}
}

func TestVoiceDivergingInterimCancelsPass(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("pas")
	h.clock.Advance(100 * time.Millisecond)
	c.OnInterim("pasuje")

	if c.PassPending() {
		t.Fatal("diverging transcript left the pass pending")
	}

	h.clock.Advance(time.Second)
	if h.s.PassCount() != 0 {
		t.Fatalf("stale pass fired: %d", h.s.PassCount())
	}
}

func TestVoiceInterleavedStreamsResolveOnce(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("p")
	c.OnInterim("pa")
	c.OnInterim("pas")
	c.OnInterim("pass")
	h.clock.Advance(200 * time.Millisecond)
	c.OnFinal("pas")
	c.OnFinal("pass")
	c.OnFinal("bass")

	if h.s.PassCount() != 1 {
		t.Fatalf("expected one pass, got %d", h.s.PassCount())
	}
	if h.count(CuePass) != 1 {
		t.Errorf("expected one pass cue, got %d", h.count(CuePass))
	}
}

func TestVoiceCorrectAnswer(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("kot")
	if h.count(CueCorrect) != 0 {
		t.Fatal("fragment matched")
	}

	c.OnInterim("to jest kotek")
	c.OnFinal("to jest kotek")
	c.OnFinal("to jest kotek")

	if h.count(CueCorrect) != 1 {
		t.Fatalf("expected one correct answer, got %d", h.count(CueCorrect))
	}

	fb, ok := h.s.Feedback()
	if !ok || fb.Kind != FeedbackCorrect || fb.Source != SourceVoice || fb.Player != PlayerOne {
		t.Errorf("unexpected feedback %+v", fb)
	}
}

func TestVoiceFuzzyOnlyForFinal(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "samochód")

	c.OnInterim("samochodem")
	if h.count(CueCorrect) != 0 {
		t.Fatal("interim inflected form matched")
	}

	c.OnFinal("samochodem")
	if h.count(CueCorrect) != 1 {
		t.Fatal("final inflected form did not match")
	}
}

func TestVoiceAnswerAttributedToActivePlayer(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	h.s.MarkCorrect(PlayerOne, SourceKeyboard)
	h.clock.Advance(1500 * time.Millisecond)

	c.OnFinal("kotek")

	fb, ok := h.s.Feedback()
	if !ok || fb.Player != PlayerTwo || fb.Source != SourceVoice {
		t.Fatalf("expected voice answer for player two, got %+v", fb)
	}
}

func TestVoiceIgnoredWhilePaused(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")
	h.s.TogglePause()

	c.OnFinal("pas")
	c.OnFinal("kotek")
	c.OnInterim("pas")

	if h.s.PassCount() != 0 || h.count(CueCorrect) != 0 || c.PassPending() {
		t.Fatal("paused duel reacted to voice")
	}
}

func TestVoiceIgnoredBeforeStart(t *testing.T) {
	h := newHarness(t, testConfig(), testCategory("kotek"))
	c := NewController(h.s, nil)

	c.OnFinal("pas")
	c.OnFinal("kotek")

	if h.s.PassCount() != 0 || h.count(CueCorrect) != 0 {
		t.Fatal("duel reacted to voice before start")
	}
}

func TestVoicePassDebounceRechecksState(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("pas")
	h.s.TogglePause()
	h.clock.Advance(time.Second)

	if h.s.PassCount() != 0 {
		t.Fatal("pass fired into a paused duel")
	}
}

func TestVoiceGateAllowsNextQuestion(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnFinal("pas")
	h.clock.Advance(1500 * time.Millisecond)
	c.OnFinal("pas")

	if h.s.PassCount() != 2 {
		t.Fatalf("expected a pass on each question, got %d", h.s.PassCount())
	}

	h.clock.Advance(1500 * time.Millisecond)
	c.OnFinal("kotek")
	if h.count(CueCorrect) != 1 {
		t.Fatal("answer refused after passes on earlier questions")
	}
}

func TestVoicePassDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.VoicePass = false
	h, c := newVoiceHarness(t, cfg, "kotek")

	c.OnInterim("pas")
	c.OnFinal("pas")
	h.clock.Advance(time.Second)

	if h.s.PassCount() != 0 {
		t.Fatal("voice pass accepted while disabled")
	}
	if !h.s.Pass(SourceKeyboard) {
		t.Error("keyboard pass should still work")
	}
}

func TestVoiceSkippedWithoutProfile(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "")

	c.OnFinal("anything at all")
	if h.count(CueCorrect) != 0 {
		t.Fatal("matched a question without an answer")
	}

	c.OnFinal("skip")
	if h.s.PassCount() != 1 {
		t.Error("pass should work without a profile")
	}
}

func TestVoiceCloseCancelsPendingPass(t *testing.T) {
	h, c := newVoiceHarness(t, testConfig(), "kotek")

	c.OnInterim("pas")
	h.s.Close()
	h.clock.Advance(time.Second)

	if h.s.PassCount() != 0 {
		t.Fatal("pending pass fired after close")
	}
	if h.clock.pending() != 0 {
		t.Errorf("%d timers pending after close", h.clock.pending())
	}
}
