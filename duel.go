// Quizduel rooms
//
// A room is a board of tiles shared by two players sitting in front of the
// same screen. Challenging a tile starts a duel on it: a picture is shown,
// the active player names it aloud or the host marks it correct, and the
// clock passes to the opponent. The first clock to run out loses the duel
// and the opponent takes the tile.
//
// Features:
// - WebSockets per room ID: /duel/:room and /duel/:room/ws
// - Every room owns one event loop; all duel state changes run on it
// - Keyboard commands and browser transcripts arrive as json messages
// - Microphone audio arrives as binary frames and is streamed to the
//   configured speech recognizer, one stream per language
// - Rooms are persisted after every change and restored on reconnect
// - Sound cues are sent to the browser and to the configured cue sinks
// - Rooms auto-reaped after configurable idle timeout
// - In-browser QR button to share the room, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/quizduel/games/duel"
	"github.com/Seednode/quizduel/games/speech"
)

// Messages coming from clients
type ClientMessage struct {
	Type     string      `json:"type"`               // "move", "challenge", "start", "correct", "pass", "pause", "cancel", "transcript", "voice_retry", "reset_board"
	Tile     *int        `json:"tile,omitempty"`     // move / challenge
	Category string      `json:"category,omitempty"` // challenge
	Player   duel.Player `json:"player,omitempty"`   // correct
	Text     string      `json:"text,omitempty"`     // transcript
	Final    bool        `json:"final,omitempty"`    // transcript
}

// Messages sent to clients
type StateMessage struct {
	Type       string         `json:"type"` // "state"
	Room       string         `json:"room"`
	Board      *Board         `json:"board"`
	Owned      [2]int         `json:"owned"`
	Categories []CategoryInfo `json:"categories"`
	Duel       *DuelView      `json:"duel"`
	Voice      VoiceView      `json:"voice"`
}

type CategoryInfo struct {
	ID   string            `json:"id"`
	Name string            `json:"name"`
	Icon string            `json:"icon,omitempty"`
	Mode duel.LanguageMode `json:"mode"`
}

type DuelView struct {
	ID         string         `json:"id"`
	Tile       int            `json:"tile"`
	Category   CategoryInfo   `json:"category"`
	Phase      duel.Phase     `json:"phase"`
	Active     duel.Player    `json:"active"`
	Timers     [2]int         `json:"timers"`
	PassCount  int            `json:"pass_count"`
	MaxPasses  int            `json:"max_passes"`
	Resolving  bool           `json:"resolving"`
	Question   *QuestionView  `json:"question,omitempty"`
	Feedback   *duel.Feedback `json:"feedback,omitempty"`
	Outcome    *duel.Outcome  `json:"outcome,omitempty"`
	PassQueued bool           `json:"pass_queued"`
}

type QuestionView struct {
	ID    string `json:"id"`
	Image string `json:"image,omitempty"`
	Hint  string `json:"hint,omitempty"`
}

type VoiceView struct {
	Server    bool     `json:"server"` // audio frames are recognized server-side
	Listening bool     `json:"listening"`
	Languages []string `json:"languages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type CueMessage struct {
	Type string   `json:"type"` // "cue"
	Cue  duel.Cue `json:"cue"`
}

type SimpleMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

// roomDeps are shared by every room of a manager.
type roomDeps struct {
	categories *Categories
	recognizer speech.Recognizer
	cues       CueSink
	store      SnapshotStore
}

type Hub struct {
	id     string
	cfg    *Config
	deps   *roomDeps
	logger *log.Logger

	loop   *duel.Loop
	cancel context.CancelFunc
	writer *snapshotWriter

	// owned by the loop
	clients  map[*Client]bool
	board    *Board
	session  *duel.Session
	voice    *duel.Controller
	mux      *speech.Multiplexer
	voiceErr string
	closing  bool
	received audioMeter

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time
}

func newHub(cfg *Config, deps *roomDeps, roomID string) *Hub {
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		id:         roomID,
		cfg:        cfg,
		deps:       deps,
		logger:     logger.With("room", roomID),
		loop:       duel.NewLoop(),
		cancel:     cancel,
		clients:    make(map[*Client]bool),
		board:      newBoard(cfg.boardSize),
		createdAt:  now,
		lastActive: now,
	}

	go h.loop.Run(ctx)

	if deps.store != nil {
		h.writer = newSnapshotWriter(deps.store)
		go h.writer.run(ctx)

		h.loop.Post(func() { h.load(ctx) })
	}

	return h
}

// load restores the saved room. It runs as the first task on the loop so
// joins queue behind it without holding up other rooms.
func (h *Hub) load(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	snap, err := h.deps.store.Load(ctx, h.id)
	cancel()

	switch {
	case err == nil:
		h.restore(snap)
	case !errors.Is(err, ErrSnapshotNotFound):
		h.logger.Error("failed to load room", "error", err)
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

func (h *Hub) register(c *Client) {
	h.touch()
	h.loop.Post(func() {
		h.clients[c] = true
		h.sendTo(c, h.stateLocked())
	})
}

func (h *Hub) unregister(c *Client) {
	h.touch()
	h.loop.Post(func() {
		h.dropLocked(c)
	})
}

func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// sendTo never blocks the loop. A client that cannot keep up is dropped.
func (h *Hub) sendTo(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("client too slow, disconnecting", "player", c.playerID)
		h.dropLocked(c)
		_ = c.conn.Close()
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for c := range h.clients {
		h.sendTo(c, msg)
	}
}

func (h *Hub) broadcastStateLocked() {
	h.broadcastLocked(h.stateLocked())
}

func (h *Hub) stateLocked() StateMessage {
	one, two := h.board.Owned()

	msg := StateMessage{
		Type:  "state",
		Room:  h.id,
		Board: &Board{Tiles: append([]duel.Player(nil), h.board.Tiles...), Cursor: h.board.Cursor},
		Owned: [2]int{one, two},
		Voice: VoiceView{
			Server: h.deps.recognizer != nil,
			Error:  h.voiceErr,
		},
	}

	for _, cat := range h.deps.categories.List() {
		msg.Categories = append(msg.Categories, categoryInfo(cat))
	}

	if h.mux != nil {
		msg.Voice.Listening = h.mux.Active()
	}

	if s := h.session; s != nil {
		msg.Duel = duelView(s, h.voice)
		msg.Voice.Languages = h.cfg.recognitionLanguages(s.Category.Mode)
	}

	return msg
}

func categoryInfo(cat duel.Category) CategoryInfo {
	return CategoryInfo{ID: cat.ID, Name: cat.Name, Icon: cat.Icon, Mode: cat.Mode}
}

func duelView(s *duel.Session, voice *duel.Controller) *DuelView {
	v := &DuelView{
		ID:        s.ID,
		Tile:      s.Tile,
		Category:  categoryInfo(s.Category),
		Phase:     s.Phase(),
		Active:    s.Active(),
		Timers:    [2]int{s.Timer(duel.PlayerOne), s.Timer(duel.PlayerTwo)},
		PassCount: s.PassCount(),
		MaxPasses: s.Config().MaxPasses,
		Resolving: s.Resolving(),
	}

	if q, ok := s.Current(); ok {
		v.Question = &QuestionView{ID: q.ID, Image: q.Image}
		if s.HintVisible() {
			v.Question.Hint = q.Answer
		}
	}
	if fb, ok := s.Feedback(); ok {
		v.Feedback = &fb
	}
	if out, ok := s.Outcome(); ok {
		v.Outcome = &out
	}
	if voice != nil {
		v.PassQueued = voice.PassPending()
	}

	return v
}

func (h *Hub) handle(c *Client, msg ClientMessage) {
	h.touch()
	h.loop.Post(func() {
		if !h.clients[c] {
			return
		}
		h.dispatchLocked(c, msg)
	})
}

func (h *Hub) dispatchLocked(c *Client, msg ClientMessage) {
	s := h.session

	switch msg.Type {
	case "move":
		if s != nil || msg.Tile == nil {
			return
		}
		if h.board.Move(*msg.Tile) {
			h.persistLocked()
			h.broadcastStateLocked()
		}
	case "challenge":
		tile := h.board.Cursor
		if msg.Tile != nil {
			tile = *msg.Tile
		}
		if err := h.startDuelLocked(tile, msg.Category); err != nil {
			h.sendTo(c, SimpleMessage{Type: "error", Message: err.Error()})
		}
	case "reset_board":
		if s != nil {
			return
		}
		h.board = newBoard(h.cfg.boardSize)
		h.persistLocked()
		h.broadcastStateLocked()
	case "voice_retry":
		if h.mux == nil {
			return
		}
		h.voiceErr = ""
		h.mux.SetActive(s != nil && s.Phase() == duel.PhaseRunning)
		h.broadcastStateLocked()
	}

	if s == nil {
		return
	}

	switch msg.Type {
	case "start":
		s.Start()
	case "correct":
		s.MarkCorrect(msg.Player, duel.SourceKeyboard)
	case "pass":
		s.Pass(duel.SourceKeyboard)
	case "pause":
		s.TogglePause()
	case "cancel":
		s.Cancel()
	case "transcript":
		if h.voice != nil {
			h.voice.Handle(msg.Text, msg.Final)
		}
	}
}

var (
	errDuelInProgress  = errors.New("a duel is already in progress")
	errUnknownCategory = errors.New("unknown category")
	errInvalidTile     = errors.New("invalid tile")
)

func (h *Hub) startDuelLocked(tile int, categoryID string) error {
	if h.session != nil {
		return errDuelInProgress
	}
	if !h.board.valid(tile) {
		return errInvalidTile
	}

	cat, ok := h.deps.categories.Get(categoryID)
	if !ok {
		return errUnknownCategory
	}
	h.board.Move(tile)

	var s *duel.Session
	s, err := duel.NewSession(h.cfg.duelConfig(), cat, tile, h.loop, h.sessionOptions(&s)...)
	if err != nil {
		return err
	}

	h.installLocked(s)

	h.logger.Info("duel created", "duel", s.ID, "tile", tile, "category", cat.ID)

	h.persistLocked()
	h.broadcastStateLocked()

	return nil
}

// sessionOptions wires a session's callbacks back to the hub. ref is filled
// in once the session exists.
func (h *Hub) sessionOptions(ref **duel.Session) []duel.Option {
	return []duel.Option{
		duel.WithLogger(h.logger.WithPrefix("duel")),
		duel.WithChangeHandler(h.onDuelChange),
		duel.WithCloseHandler(h.onDuelClose),
		duel.WithCueHandler(func(c duel.Cue) {
			if *ref != nil {
				h.onCue(*ref, c)
			}
		}),
	}
}

func (h *Hub) installLocked(s *duel.Session) {
	h.session = s
	h.voice = duel.NewController(s, h.logger.WithPrefix("voice"))
	h.voiceErr = ""

	if h.deps.recognizer == nil {
		return
	}

	var mux *speech.Multiplexer
	mux = speech.NewMultiplexer(h.deps.recognizer, h.voice,
		speech.WithDispatcher(func(f func()) { h.loop.Post(f) }),
		speech.WithErrorHandler(func(lang string, err error) {
			if h.mux != mux {
				return
			}
			h.voiceErr = voiceAdvisory(lang, err)
			h.broadcastStateLocked()
		}),
		speech.WithLogger(h.logger.WithPrefix("speech")),
	)
	mux.SetLanguages(h.cfg.recognitionLanguages(s.Category.Mode)...)

	s.Attach(mux)
	h.mux = mux
}

func voiceAdvisory(lang string, err error) string {
	switch {
	case errors.Is(err, speech.ErrPermissionDenied):
		return "Speech recognition was refused (" + lang + "). Keyboard controls still work."
	case errors.Is(err, speech.ErrNetwork):
		return "Speech recognition is unreachable (" + lang + "). Keyboard controls still work."
	}
	return "Speech recognition stopped (" + lang + "): " + err.Error()
}

func (h *Hub) onDuelChange(s *duel.Session) {
	if s != h.session {
		return
	}

	// Recognition only runs while the clock does.
	if h.mux != nil {
		want := s.Phase() == duel.PhaseRunning
		if h.mux.Active() != want && (h.voiceErr == "" || !want) {
			h.mux.SetActive(want)
		}
	}

	h.persistLocked()
	h.broadcastStateLocked()
}

func (h *Hub) onDuelClose(s *duel.Session, out duel.Outcome) {
	if s != h.session {
		return
	}

	if h.board.Assign(s.Tile, out.Winner) {
		h.logger.Info("tile taken", "tile", s.Tile, "player", out.Winner)
	}

	if frames, size := h.received.reset(); frames > 0 {
		h.logger.Debug("duel audio", "duel", s.ID, "frames", frames, "size", size)
	}

	h.session = nil
	h.voice = nil
	h.mux = nil
	h.voiceErr = ""

	h.persistLocked()
	h.broadcastStateLocked()
}

func (h *Hub) onCue(s *duel.Session, c duel.Cue) {
	if s != h.session {
		return
	}

	h.broadcastLocked(CueMessage{Type: "cue", Cue: c})
	if h.deps.cues != nil {
		h.deps.cues.Cue(CueEvent{Room: h.id, Duel: s.ID, Cue: c, At: time.Now()})
	}
}

func (h *Hub) audio(data []byte) {
	if h.idleSince().Before(time.Now().Add(-audioTouchInterval)) {
		h.touch()
	}

	h.loop.Post(func() {
		if h.mux != nil && h.mux.Active() {
			h.received.add(data)
			h.mux.Feed(data)
		}
	})
}

func (h *Hub) snapshotLocked() RoomSnapshot {
	snap := RoomSnapshot{
		Room:    h.id,
		Tiles:   append([]duel.Player(nil), h.board.Tiles...),
		Cursor:  h.board.Cursor,
		SavedAt: time.Now(),
	}

	if s := h.session; s != nil {
		switch s.Phase() {
		case duel.PhaseNotStarted, duel.PhaseRunning, duel.PhasePaused:
			d := s.Snapshot()
			snap.Duel = &d
		}
	}

	return snap
}

func (h *Hub) persistLocked() {
	if h.writer != nil && !h.closing {
		h.writer.Offer(h.snapshotLocked())
	}
}

func (h *Hub) restore(snap RoomSnapshot) {
	if err := h.board.restore(snap.Tiles, snap.Cursor); err != nil {
		h.logger.Warn("ignoring saved board", "error", err)
	}

	if snap.Duel != nil && h.session == nil {
		cat, ok := h.deps.categories.Get(snap.Duel.CategoryID)
		if !ok {
			h.logger.Warn("ignoring saved duel, category is gone", "category", snap.Duel.CategoryID)
		} else {
			var s *duel.Session
			s, err := duel.Restore(h.cfg.duelConfig(), cat, *snap.Duel, h.loop, h.sessionOptions(&s)...)
			if err != nil {
				h.logger.Warn("ignoring saved duel", "error", err)
			} else {
				h.installLocked(s)
				h.logger.Info("duel restored", "duel", s.ID, "tile", s.Tile)
			}
		}
	}

	h.broadcastStateLocked()
}

// stop shuts the room down. The saved snapshot is removed when forget is
// set, otherwise the room resumes from it after a restart.
func (h *Hub) stop(forget bool) {
	h.loop.Call(func() {
		h.persistLocked()
		h.closing = true

		if h.session != nil {
			h.session.Close()
		}
		for c := range h.clients {
			h.dropLocked(c)
			_ = c.conn.Close()
		}
	})

	h.loop.Close()
	h.cancel()

	if h.writer == nil {
		return
	}
	<-h.writer.done

	if forget {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := h.deps.store.Delete(ctx, h.id); err != nil {
			h.logger.Error("failed to delete room", "error", err)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	playerCookieName   = "quizduel_id"
	maxFrameSize       = 1 << 20
	audioTouchInterval = 10 * time.Second
)

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		logger.Error("rand.Read error", "error", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// GameManager holds a set of hubs keyed by room ID, so each $path/$room
// is its own isolated board.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	cfg         *Config
	deps        *roomDeps
	quit        chan struct{}
}

func newGameManager(cfg *Config, deps *roomDeps) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: cfg.sessionTimeout,
		cfg:         cfg,
		deps:        deps,
		quit:        make(chan struct{}),
	}
	if gm.idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(roomID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[roomID]; ok {
		return hub
	}

	hub := newHub(gm.cfg, gm.deps, roomID)
	gm.hubs[roomID] = hub
	return hub
}

// newRoomID generates a crypto-random room ID and ensures it doesn't
// collide with existing rooms.
func (gm *GameManager) newRoomID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.quit:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(gm.hubs, id)
				logf(gm.cfg, "GAMES: Reaped idle room %s", id)
				go hub.stop(true)
			}
		}
		gm.mu.Unlock()
	}
}

// shutdown stops every room but keeps their snapshots.
func (gm *GameManager) shutdown() {
	close(gm.quit)

	gm.mu.Lock()
	hubs := make([]*Hub, 0, len(gm.hubs))
	for id, hub := range gm.hubs {
		hubs = append(hubs, hub)
		delete(gm.hubs, id)
	}
	gm.mu.Unlock()

	var wg sync.WaitGroup
	for _, hub := range hubs {
		wg.Go(func() { hub.stop(false) })
	}
	wg.Wait()
}

// WebSocket handler that picks the hub based on :room
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("room")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		hub := gm.getHub(roomID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "WS: Upgrade failed for %s: %v", realIP(r), err)
			return
		}
		conn.SetReadLimit(maxFrameSize)

		client := &Client{
			conn:     conn,
			send:     make(chan any, 32),
			playerID: playerID,
		}

		logf(cfg, "WS: %s joined room %s", realIP(r), roomID)

		hub.register(client)

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			h.audio(data)
		case websocket.TextMessage:
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			h.handle(c, msg)
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomID := ps.ByName("room")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:room/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func serveRoomPage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		data, err := assets.ReadFile("assets/duel/index.html")
		if err != nil {
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewRoom handles GET /path by generating a new random room ID
// (with server-side collision detection) and redirecting to /path/:room.
func redirectNewRoom(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomID := gm.newRoomID()
		logf(cfg, "GAMES: Created room %s/%s", path, roomID)
		http.Redirect(w, r, cfg.prefix+path+"/"+roomID, http.StatusTemporaryRedirect)
	}
}

// registerDuelGame sets up routes so that:
//   - $path               → redirects to new random room (8-char ID)
//   - $path/:room         → HTML client
//   - $path/:room/ws      → WebSocket for that room
//   - $path/:room/qr      → PNG QR code for that room URL
func registerDuelGame(cfg *Config, path string, mux *httprouter.Router, deps *roomDeps, errs chan<- error) *GameManager {
	gm := newGameManager(cfg, deps)

	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:room", serveRoomPage(cfg, errs))
	mux.GET(cfg.prefix+path+"/:room/ws", serveWSForManager(cfg, gm))
	mux.GET(cfg.prefix+path+"/:room/qr", qrHandler)

	return gm
}
