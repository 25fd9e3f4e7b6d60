/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/quizduel/games/duel"
	"github.com/Seednode/quizduel/games/speech"
)

func testCategories(t *testing.T) *Categories {
	t.Helper()

	c, err := newCategories([]duel.Category{
		{ID: "solo", Name: "Solo", Questions: []duel.Question{{Answer: "kot"}}},
		{ID: "pair", Name: "Pair", Mode: duel.ModeDual, Questions: []duel.Question{{Answer: "kot"}, {Answer: "pies"}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// echoRecognizer turns every audio frame into a final transcript of the
// frame's bytes.
type echoRecognizer struct{}

func (echoRecognizer) Recognize(ctx context.Context, _ string, audio <-chan []byte, emit func(speech.Result)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-audio:
			emit(speech.Result{Alternatives: []string{string(frame)}, Final: true})
		}
	}
}

type refusingRecognizer struct {
	mu    sync.Mutex
	calls int
}

func (r *refusingRecognizer) Recognize(context.Context, string, <-chan []byte, func(speech.Result)) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return speech.ErrPermissionDenied
}

func (r *refusingRecognizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type recordingCues struct {
	mu     sync.Mutex
	events []CueEvent
}

func (r *recordingCues) Cue(ev CueEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingCues) has(c duel.Cue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Cue == c {
			return true
		}
	}
	return false
}

type testServer struct {
	srv *httptest.Server
	gm  *GameManager
}

func newTestServer(t *testing.T, cfg *Config, deps *roomDeps) *testServer {
	t.Helper()

	if deps.categories == nil {
		deps.categories = testCategories(t)
	}

	router := httprouter.New()
	errs := make(chan error, 16)

	gm := registerDuelGame(cfg, "/duel", router, deps, errs)
	srv := httptest.NewServer(router)

	t.Cleanup(srv.Close)
	t.Cleanup(gm.shutdown)

	return &testServer{srv: srv, gm: gm}
}

func (ts *testServer) dial(t *testing.T, room string) *testClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/duel/" + room + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &testClient{t: t, conn: conn}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	cues []duel.Cue
}

func (c *testClient) send(msg ClientMessage) {
	c.t.Helper()
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("send %s: %v", msg.Type, err)
	}
}

func (c *testClient) await(what string, cond func(StateMessage) bool) StateMessage {
	c.t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = c.conn.SetReadDeadline(deadline)

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %s: %v", what, err)
		}

		var env struct {
			Type string   `json:"type"`
			Cue  duel.Cue `json:"cue"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			c.t.Fatalf("bad message %s: %v", data, err)
		}

		switch env.Type {
		case "cue":
			c.cues = append(c.cues, env.Cue)
		case "state":
			var msg StateMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.t.Fatalf("bad state %s: %v", data, err)
			}
			if cond(msg) {
				return msg
			}
		}
	}
}

func (c *testClient) awaitError() string {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for error: %v", err)
		}

		var msg SimpleMessage
		if err := json.Unmarshal(data, &msg); err == nil && msg.Type == "error" {
			return msg.Message
		}
	}
}

func tile(n int) *int { return &n }

func phase(p duel.Phase) func(StateMessage) bool {
	return func(m StateMessage) bool { return m.Duel != nil && m.Duel.Phase == p }
}

func TestRoomSendsStateOnConnect(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{})
	c := ts.dial(t, "room1")

	msg := c.await("initial state", func(StateMessage) bool { return true })
	if msg.Room != "room1" || len(msg.Board.Tiles) != 4 || msg.Duel != nil {
		t.Fatalf("state = %+v", msg)
	}
	if len(msg.Categories) != 2 || msg.Categories[1].Mode != duel.ModeDual {
		t.Errorf("categories = %+v", msg.Categories)
	}
	if msg.Voice.Server {
		t.Error("voice.server = true without a recognizer")
	}
}

func TestRoomKeyboardDuel(t *testing.T) {
	cues := &recordingCues{}
	ts := newTestServer(t, testConfig(), &roomDeps{cues: cues})
	c := ts.dial(t, "room1")
	c.await("initial state", func(StateMessage) bool { return true })

	c.send(ClientMessage{Type: "challenge", Tile: tile(2), Category: "pair"})
	msg := c.await("duel created", phase(duel.PhaseNotStarted))
	if msg.Board.Cursor != 2 || msg.Duel.Tile != 2 || msg.Duel.Category.ID != "pair" {
		t.Fatalf("duel = %+v, cursor %d", msg.Duel, msg.Board.Cursor)
	}
	if msg.Duel.Timers != [2]int{45, 45} || msg.Duel.Active != duel.PlayerOne {
		t.Errorf("duel = %+v", msg.Duel)
	}
	if langs := msg.Voice.Languages; len(langs) != 2 {
		t.Errorf("dual category languages = %v", langs)
	}

	c.send(ClientMessage{Type: "start"})
	msg = c.await("running", phase(duel.PhaseRunning))
	if msg.Duel.Question == nil || msg.Duel.Question.ID == "" {
		t.Fatalf("no question after start: %+v", msg.Duel)
	}

	c.send(ClientMessage{Type: "pass"})
	msg = c.await("pass", func(m StateMessage) bool {
		return m.Duel != nil && m.Duel.Feedback != nil && m.Duel.Feedback.Kind == duel.FeedbackPass
	})
	if msg.Duel.PassCount != 1 || msg.Duel.Timers[0] > 43 || msg.Duel.Active != duel.PlayerOne {
		t.Errorf("after pass: %+v", msg.Duel)
	}
	if msg.Duel.Feedback.Source != duel.SourceKeyboard {
		t.Errorf("feedback source = %q", msg.Duel.Feedback.Source)
	}

	c.await("settle", func(m StateMessage) bool { return m.Duel != nil && !m.Duel.Resolving && m.Duel.Feedback == nil })

	// Only the active player can be marked correct.
	c.send(ClientMessage{Type: "correct", Player: duel.PlayerTwo})
	c.send(ClientMessage{Type: "correct", Player: duel.PlayerOne})
	msg = c.await("correct", func(m StateMessage) bool {
		return m.Duel != nil && m.Duel.Feedback != nil && m.Duel.Feedback.Kind == duel.FeedbackCorrect
	})
	if msg.Duel.Feedback.Player != duel.PlayerOne {
		t.Errorf("correct credited to %d", msg.Duel.Feedback.Player)
	}

	c.await("turn passes", func(m StateMessage) bool { return m.Duel != nil && m.Duel.Active == duel.PlayerTwo })

	c.send(ClientMessage{Type: "cancel"})
	msg = c.await("duel closed", func(m StateMessage) bool { return m.Duel == nil })
	if msg.Board.Tiles[2] != duel.PlayerNone {
		t.Errorf("cancelled duel assigned tile to %d", msg.Board.Tiles[2])
	}

	if !cues.has(duel.CuePass) || !cues.has(duel.CueCorrect) {
		t.Errorf("cue sink missed cues: %+v", cues.events)
	}
}

func TestRoomTimeoutAssignsTile(t *testing.T) {
	cfg := testConfig()
	cfg.duelTime = 1

	ts := newTestServer(t, cfg, &roomDeps{})
	c := ts.dial(t, "room1")

	c.send(ClientMessage{Type: "challenge", Tile: tile(1), Category: "solo"})
	c.await("duel created", phase(duel.PhaseNotStarted))
	c.send(ClientMessage{Type: "start"})

	msg := c.await("resolved", phase(duel.PhaseResolved))
	if o := msg.Duel.Outcome; o == nil || o.Winner != duel.PlayerTwo || o.Reason != duel.ReasonTimeout {
		t.Fatalf("outcome = %+v", msg.Duel.Outcome)
	}

	msg = c.await("duel closed", func(m StateMessage) bool { return m.Duel == nil })
	if msg.Board.Tiles[1] != duel.PlayerTwo || msg.Owned != [2]int{0, 1} {
		t.Errorf("board = %+v, owned %v", msg.Board, msg.Owned)
	}

	buzzer := false
	for _, cue := range c.cues {
		buzzer = buzzer || cue == duel.CueBuzzer
	}
	if !buzzer {
		t.Errorf("cues = %v, want a buzzer", c.cues)
	}
}

func TestRoomRejectsSecondChallenge(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{})
	c := ts.dial(t, "room1")

	c.send(ClientMessage{Type: "challenge", Tile: tile(0), Category: "solo"})
	c.await("duel created", phase(duel.PhaseNotStarted))

	c.send(ClientMessage{Type: "challenge", Tile: tile(1), Category: "solo"})
	if got := c.awaitError(); got != errDuelInProgress.Error() {
		t.Errorf("error = %q", got)
	}

	c.send(ClientMessage{Type: "cancel"})
	c.await("duel closed", func(m StateMessage) bool { return m.Duel == nil })

	c.send(ClientMessage{Type: "challenge", Tile: tile(1), Category: "nope"})
	if got := c.awaitError(); got != errUnknownCategory.Error() {
		t.Errorf("error = %q", got)
	}
}

func TestRoomVoiceAnswer(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{recognizer: echoRecognizer{}})
	c := ts.dial(t, "room1")

	c.send(ClientMessage{Type: "challenge", Tile: tile(0), Category: "solo"})
	msg := c.await("duel created", phase(duel.PhaseNotStarted))
	if !msg.Voice.Server || msg.Voice.Listening {
		t.Fatalf("voice before start = %+v", msg.Voice)
	}

	c.send(ClientMessage{Type: "start"})
	c.await("listening", func(m StateMessage) bool {
		return m.Duel != nil && m.Duel.Phase == duel.PhaseRunning && m.Voice.Listening
	})

	if err := c.conn.WriteMessage(websocket.BinaryMessage, []byte("to jest kot")); err != nil {
		t.Fatal(err)
	}

	msg = c.await("voice answer", func(m StateMessage) bool {
		return m.Duel != nil && m.Duel.Feedback != nil && m.Duel.Feedback.Kind == duel.FeedbackCorrect
	})
	if fb := msg.Duel.Feedback; fb.Source != duel.SourceVoice || fb.Player != duel.PlayerOne || fb.Answer != "kot" {
		t.Errorf("feedback = %+v", fb)
	}

	c.send(ClientMessage{Type: "pause"})
	c.await("recognition stops while paused", func(m StateMessage) bool {
		return m.Duel != nil && m.Duel.Phase == duel.PhasePaused && !m.Voice.Listening
	})
}

func TestRoomBrowserTranscripts(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{})
	c := ts.dial(t, "room1")

	c.send(ClientMessage{Type: "challenge", Tile: tile(0), Category: "solo"})
	c.await("duel created", phase(duel.PhaseNotStarted))
	c.send(ClientMessage{Type: "start"})
	c.await("running", phase(duel.PhaseRunning))

	c.send(ClientMessage{Type: "transcript", Text: "pas"})
	msg := c.await("spoken pass", func(m StateMessage) bool {
		return m.Duel != nil && m.Duel.Feedback != nil && m.Duel.Feedback.Kind == duel.FeedbackPass
	})
	if msg.Duel.Feedback.Source != duel.SourceVoice || msg.Duel.PassCount != 1 {
		t.Errorf("after spoken pass: %+v", msg.Duel)
	}
}

func TestRoomReportsRecognitionFaults(t *testing.T) {
	rec := &refusingRecognizer{}
	ts := newTestServer(t, testConfig(), &roomDeps{recognizer: rec})
	c := ts.dial(t, "room1")

	c.send(ClientMessage{Type: "challenge", Tile: tile(0), Category: "solo"})
	c.await("duel created", phase(duel.PhaseNotStarted))
	c.send(ClientMessage{Type: "start"})

	msg := c.await("advisory", func(m StateMessage) bool { return m.Voice.Error != "" })
	if !strings.Contains(msg.Voice.Error, "refused") || msg.Duel.Phase != duel.PhaseRunning {
		t.Errorf("state = %+v, duel %+v", msg.Voice, msg.Duel)
	}

	// Keyboard play is unaffected.
	c.send(ClientMessage{Type: "pass"})
	c.await("pass", func(m StateMessage) bool { return m.Duel != nil && m.Duel.PassCount == 1 })

	c.send(ClientMessage{Type: "voice_retry"})
	waitUntil(t, "retry", func() bool { return rec.count() >= 2 })
}

func TestRoomPersistsAndRestores(t *testing.T) {
	store := newMemoryStore()
	store.rooms["saved"] = RoomSnapshot{
		Room:   "saved",
		Tiles:  []duel.Player{1, 0, 2, 0},
		Cursor: 3,
		Duel: &duel.Snapshot{
			ID:         "d1",
			Tile:       3,
			CategoryID: "solo",
			Timers:     [2]int{12, 30},
			Active:     duel.PlayerTwo,
			Started:    true,
			QuestionID: "solo-1",
			Used:       []string{"solo-1"},
			PassCount:  2,
		},
	}

	ts := newTestServer(t, testConfig(), &roomDeps{store: store})
	c := ts.dial(t, "saved")

	msg := c.await("restored duel", func(m StateMessage) bool { return m.Duel != nil })
	if msg.Duel.ID != "d1" || msg.Duel.Phase != duel.PhasePaused || msg.Duel.Timers != [2]int{12, 30} {
		t.Fatalf("restored duel = %+v", msg.Duel)
	}
	if msg.Duel.Active != duel.PlayerTwo || msg.Duel.PassCount != 2 || msg.Owned != [2]int{1, 1} {
		t.Errorf("restored state = %+v, owned %v", msg.Duel, msg.Owned)
	}

	c.send(ClientMessage{Type: "pause"})
	c.await("resumed", phase(duel.PhaseRunning))

	waitUntil(t, "running duel saved", func() bool {
		for _, s := range store.saved() {
			if s.Duel != nil && s.Duel.ID == "d1" && !s.Duel.Paused {
				return true
			}
		}
		return false
	})

	c.send(ClientMessage{Type: "cancel"})
	c.await("closed", func(m StateMessage) bool { return m.Duel == nil })

	waitUntil(t, "closed duel saved", func() bool {
		saves := store.saved()
		return len(saves) > 0 && saves[len(saves)-1].Duel == nil
	})
}

func TestRoomMoveAndReset(t *testing.T) {
	store := newMemoryStore()
	ts := newTestServer(t, testConfig(), &roomDeps{store: store})
	c := ts.dial(t, "room1")
	c.await("initial state", func(StateMessage) bool { return true })

	c.send(ClientMessage{Type: "move", Tile: tile(3)})
	c.await("moved", func(m StateMessage) bool { return m.Board.Cursor == 3 })

	c.send(ClientMessage{Type: "move", Tile: tile(9)})
	c.send(ClientMessage{Type: "reset_board"})
	c.await("reset", func(m StateMessage) bool { return m.Board.Cursor == 0 })

	waitUntil(t, "saved", func() bool {
		saves := store.saved()
		return len(saves) > 0 && saves[len(saves)-1].Cursor == 0
	})
}

func TestGameManagerReapsIdleRooms(t *testing.T) {
	cfg := testConfig()
	cfg.sessionTimeout = 40 * time.Millisecond

	store := newMemoryStore()
	store.rooms["old"] = RoomSnapshot{Room: "old", Tiles: make([]duel.Player, cfg.boardSize)}

	gm := newGameManager(cfg, &roomDeps{categories: testCategories(t), store: store})
	t.Cleanup(gm.shutdown)

	gm.getHub("old")

	waitUntil(t, "reap", func() bool {
		gm.mu.Lock()
		defer gm.mu.Unlock()
		return len(gm.hubs) == 0
	})
	waitUntil(t, "snapshot removed", func() bool {
		_, err := store.Load(context.Background(), "old")
		return errors.Is(err, ErrSnapshotNotFound)
	})
}

func TestSlowRoomLoadDoesNotBlockOtherRooms(t *testing.T) {
	store := newMemoryStore()
	store.loadGate = make(chan struct{})
	store.rooms["slow"] = RoomSnapshot{Room: "slow", Tiles: make([]duel.Player, 4), Cursor: 2}

	gm := newGameManager(testConfig(), &roomDeps{categories: testCategories(t), store: store})
	release := sync.OnceFunc(func() { close(store.loadGate) })
	t.Cleanup(gm.shutdown)
	t.Cleanup(release)

	done := make(chan struct{})
	go func() {
		gm.getHub("slow")
		gm.getHub("other")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("creating rooms waited on a pending load")
	}

	release()

	h := gm.getHub("slow")

	var cursor int
	h.loop.Call(func() { cursor = h.board.Cursor })
	if cursor != 2 {
		t.Errorf("cursor = %d, want the saved 2", cursor)
	}
}

func TestAudioKeepsRoomActive(t *testing.T) {
	gm := newGameManager(testConfig(), &roomDeps{categories: testCategories(t)})
	t.Cleanup(gm.shutdown)

	h := gm.getHub("voice")

	stale := time.Now().Add(-time.Hour)
	h.mu.Lock()
	h.lastActive = stale
	h.mu.Unlock()

	h.audio([]byte{1, 2, 3})
	if time.Since(h.idleSince()) > time.Minute {
		t.Fatal("audio frame did not mark the room active")
	}

	recent := time.Now().Add(-time.Second)
	h.mu.Lock()
	h.lastActive = recent
	h.mu.Unlock()

	h.audio([]byte{4, 5, 6})
	if !h.idleSince().Equal(recent) {
		t.Error("every audio frame refreshed the idle clock")
	}
}

func TestNewRoomRedirect(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{})

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(ts.srv.URL + "/duel")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	loc := resp.Header.Get("Location")
	if resp.StatusCode != http.StatusTemporaryRedirect || !strings.HasPrefix(loc, "/duel/") || len(loc) != len("/duel/")+8 {
		t.Errorf("redirect = %d %q", resp.StatusCode, loc)
	}
}

func TestQRCode(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{})

	resp, err := http.Get(ts.srv.URL + "/duel/abc/qr")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)

	if resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Errorf("qr response = %s, %d bytes", resp.Header.Get("Content-Type"), buf.Len())
	}
}

func TestRoomPage(t *testing.T) {
	ts := newTestServer(t, testConfig(), &roomDeps{})

	resp, err := http.Get(ts.srv.URL + "/duel/abc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)

	if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "app.js") {
		t.Errorf("room page = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Permissions-Policy"), "microphone=(self)") {
		t.Errorf("microphone not allowed: %q", resp.Header.Get("Permissions-Policy"))
	}
}
