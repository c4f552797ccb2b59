// Package session drives the stateful chat exchange over a persistent
// websocket connection: frame classification (text vs audio), per-session
// chat history, turn orchestration, and error recovery. One session handles
// at most one turn at a time; the server hosts many sessions, each running
// its own Run loop.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"unicode/utf8"

	"github.com/adotb/adotb-go/internal/apperrors"
	"github.com/adotb/adotb-go/internal/logging"
	"github.com/adotb/adotb-go/internal/rag"
)

// Conn is the subset of *websocket.Conn the session loop needs.
// Tests inject a fake; production uses a gorilla connection.
type Conn interface {
	// ReadMessage blocks for the next frame and returns its type and payload.
	ReadMessage() (messageType int, p []byte, err error)
	// WriteJSON encodes v as a JSON text frame.
	WriteJSON(v any) error
	// Close tears down the underlying connection.
	Close() error
}

// Conversation is the subset of the conversation pipeline a session drives.
// *pipeline.ConversationPipeline satisfies it; tests inject a fake.
type Conversation interface {
	// Answer runs one retrieval-augmented generation call.
	Answer(ctx context.Context, query string, hist []rag.ChatTurn, language string) (*rag.Answer, error)
	// Transcribe converts an audio payload to text.
	Transcribe(ctx context.Context, audio []byte) (string, error)
	// Persist flushes the vector store when the session closes.
	Persist(ctx context.Context) error
}

// HistorySink receives completed turns for durable transcript storage.
// history.Store satisfies it.
type HistorySink interface {
	Append(ctx context.Context, sessionID, userID string, turns []rag.ChatTurn) error
}

// Config assembles a Session.
type Config struct {
	// Conn is the accepted websocket connection. Required.
	Conn Conn
	// Pipeline answers turns for this session. Required.
	Pipeline Conversation
	// Sink, when non-nil, receives completed turns for durable storage.
	Sink HistorySink
	// ID identifies the session in logs and transcripts.
	ID string
	// UserID is the authenticated user, or "anonymous".
	UserID string
	// Language selects the response language ("" means English).
	Language string
	// Logger is the structured logger. If nil, logging.New is used.
	Logger *slog.Logger
	// OnTurn, when non-nil, observes each completed turn's outcome:
	// "ok", "error", or "fatal".
	OnTurn func(outcome string)
}

// Session owns one client connection and its chat history. History is
// append-only between resets and is allocated fresh per session, never
// shared.
type Session struct {
	conn Conn
	pipe Conversation
	sink HistorySink

	id       string
	userID   string
	language string

	// turns is the in-memory history replayed into prompts. flushed counts
	// how many of them the sink has already stored.
	turns   []rag.ChatTurn
	flushed int

	onTurn func(outcome string)
	log    *slog.Logger
}

// clientMessage is the decoded form of a UTF-8 JSON client frame.
type clientMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// New constructs a Session from cfg.
func New(cfg *Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	userID := cfg.UserID
	if userID == "" {
		userID = "anonymous"
	}
	return &Session{
		conn:     cfg.Conn,
		pipe:     cfg.Pipeline,
		sink:     cfg.Sink,
		id:       cfg.ID,
		userID:   userID,
		language: cfg.Language,
		onTurn:   cfg.OnTurn,
		log: log.With(
			slog.String("session_id", cfg.ID),
			slog.String("user_id", userID),
		),
	}
}

// History returns a copy of the session's chat history in turn order.
func (s *Session) History() []rag.ChatTurn {
	out := make([]rag.ChatTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Run reads frames until the client disconnects or a fatal turn error
// closes the session. Frames are processed strictly one at a time, so a new
// frame is not read until the previous turn's response has been written or
// failed. Run always flushes history and persists the store before
// returning.
func (s *Session) Run(ctx context.Context) {
	defer s.close(ctx)

	s.log.Info("session started")
	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Info("session disconnected", slog.Any("reason", err))
			return
		}
		if !s.handleFrame(ctx, frame) {
			return
		}
	}
}

// handleFrame classifies and processes one inbound frame. It returns false
// when the session must close (fatal turn error or a dead connection).
func (s *Session) handleFrame(ctx context.Context, frame []byte) bool {
	msg, isText := decodeClientFrame(frame)
	if !isText {
		return s.handleAudio(ctx, frame)
	}

	if msg.Type == "reset" {
		s.reset(ctx)
		return s.send(BotResponse{
			Message: ResetNotice,
			Sender:  SenderBot,
			Sources: []string{},
			Media:   []string{},
			Type:    TypeAnswer,
		})
	}
	if msg.Message == "" {
		s.log.Warn("empty client message ignored")
		return true
	}
	return s.turn(ctx, msg.Message)
}

// decodeClientFrame attempts to read frame as a UTF-8 JSON client message.
// Anything that does not decode is audio.
func decodeClientFrame(frame []byte) (clientMessage, bool) {
	if !utf8.Valid(frame) {
		return clientMessage{}, false
	}
	var msg clientMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return clientMessage{}, false
	}
	return msg, true
}

// reset clears the chat history without counting as a turn. Turns already
// completed are flushed to the sink first so the durable transcript keeps
// them.
func (s *Session) reset(ctx context.Context) {
	s.flush(ctx)
	s.turns = nil
	s.flushed = 0
	s.log.Info("chat history reset")
}

// handleAudio transcribes the payload, echoes the question back, and runs
// the turn on the transcription.
func (s *Session) handleAudio(ctx context.Context, audio []byte) bool {
	text, err := s.pipe.Transcribe(ctx, audio)
	if err != nil {
		return s.reportTurnError(err)
	}
	if !s.send(QuestionEcho(text)) {
		return false
	}
	return s.turn(ctx, text)
}

// turn runs one retrieval-augmented generation call and appends the
// completed exchange to history. Failures become ERROR frames; the session
// stays open unless the error is fatal.
func (s *Session) turn(ctx context.Context, query string) bool {
	ans, err := s.pipe.Answer(ctx, query, s.turns, s.language)
	if err != nil {
		return s.reportTurnError(err)
	}
	s.turns = append(s.turns, rag.ChatTurn{Question: ans.Question, Answer: ans.Text})
	s.observe("ok")
	return s.send(AnswerResponse(ans))
}

func (s *Session) observe(outcome string) {
	if s.onTurn != nil {
		s.onTurn(outcome)
	}
}

// reportTurnError logs err and sends a user-facing ERROR frame carrying only
// the stable title and detail, never upstream internals. A fatal error sends
// the terminal frame and then closes the session.
func (s *Session) reportTurnError(err error) bool {
	appErr := apperrors.From(err)
	s.log.Error("turn failed",
		slog.String("title", appErr.Title),
		slog.Any("error", err),
	)

	msg := appErr.Title
	if appErr.Detail != "" {
		msg = appErr.Detail
	}
	if apperrors.IsFatal(err) {
		s.observe("fatal")
		s.send(ErrorResponse(msg))
		s.log.Error("fatal session error, closing")
		return false
	}
	s.observe("error")
	return s.send(ErrorResponse(msg))
}

// send writes one frame, returning false when the connection is gone.
func (s *Session) send(resp BotResponse) bool {
	if err := s.conn.WriteJSON(resp); err != nil {
		s.log.Warn("write failed, closing session", slog.Any("error", err))
		return false
	}
	return true
}

// flush appends turns the sink has not seen yet.
func (s *Session) flush(ctx context.Context) {
	if s.sink == nil || s.flushed >= len(s.turns) {
		return
	}
	pending := s.turns[s.flushed:]
	if err := s.sink.Append(ctx, s.id, s.userID, pending); err != nil {
		s.log.Error("history flush failed", slog.Any("error", err))
		return
	}
	s.flushed = len(s.turns)
}

// close releases per-session state: the remaining history is flushed, the
// vector store is persisted, and the connection is closed.
func (s *Session) close(ctx context.Context) {
	s.flush(ctx)
	if err := s.pipe.Persist(ctx); err != nil {
		s.log.Error("store persist failed on close", slog.Any("error", err))
	}
	_ = s.conn.Close()
	s.log.Info("session closed", slog.Int("turns", len(s.turns)))
}
