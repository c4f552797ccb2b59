package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/adotb/adotb-go/internal/auth"
	"github.com/adotb/adotb-go/internal/logging"
	"github.com/adotb/adotb-go/internal/pipeline"
	"github.com/adotb/adotb-go/internal/session"
)

// handleChat handles GET /chat: it upgrades the connection, resolves the
// caller's label entitlements, builds a conversation pipeline bound to them,
// and hands the connection to a session loop. The upgrade happens before
// authentication so an unauthenticated caller receives the sign-in notice
// over the chat protocol instead of an HTTP rejection.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}
	requested := splitLabelsParam(r.URL.Query()["labels"])
	language := r.URL.Query().Get("language")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	userID := "anonymous"
	labels := requested
	if s.cfg.Auth != nil {
		uid, err := authenticate(r, s.cfg.Auth, token)
		if err != nil {
			// The notice is a courtesy frame; the session never starts.
			_ = conn.WriteJSON(session.ErrorResponse(auth.SignInNotice))
			_ = conn.Close()
			return
		}
		userID = uid

		accessible, err := s.cfg.Auth.AccessibleLabels(r.Context(), uid)
		if err != nil {
			s.writeFatalFrame(conn, err)
			return
		}
		labels = auth.ResolveLabels(requested, accessible)
	}

	conv := pipeline.NewConversationPipeline(s.pipe, labels)
	if s.cfg.Model != nil {
		if err := conv.SetGenerator(s.cfg.Model, s.cfg.QueryLimit, s.cfg.ContextChars); err != nil {
			s.writeFatalFrame(conn, err)
			return
		}
	}
	if s.cfg.Transcribe != nil {
		if err := conv.SetTranscriber(s.cfg.Transcribe); err != nil {
			s.writeFatalFrame(conn, err)
			return
		}
	}

	sess := session.New(&session.Config{
		Conn:     conn,
		Pipeline: conv,
		Sink:     s.cfg.History,
		ID:       uuid.NewString(),
		UserID:   userID,
		Language: language,
		Logger:   s.log,
		OnTurn: func(outcome string) {
			s.metrics.chatTurnsTotal.WithLabelValues(outcome).Inc()
		},
	})

	s.metrics.chatSessionsActive.Inc()
	defer s.metrics.chatSessionsActive.Dec()

	// The session runs on the handler goroutine; the hijacked connection is
	// independent of the HTTP write timeout.
	sess.Run(r.Context())
}

// authenticate validates the chat token, returning the user ID.
func authenticate(r *http.Request, a auth.Authenticator, token string) (string, error) {
	if token == "" {
		return "", auth.ErrNoToken
	}
	return a.CheckToken(r.Context(), token)
}

// writeFatalFrame reports a pre-session failure over the chat protocol and
// closes the connection.
func (s *Server) writeFatalFrame(conn session.Conn, err error) {
	s.log.Error("chat session setup failed", slog.Any("error", err))
	_ = conn.WriteJSON(session.ErrorResponse("could not start the chat session"))
	_ = conn.Close()
}

// splitLabelsParam accepts labels both as repeated query parameters and as
// comma-separated values within one parameter.
func splitLabelsParam(params []string) []string {
	var out []string
	for _, p := range params {
		for _, l := range strings.Split(p, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}
