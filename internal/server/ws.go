package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsExchangeTimeout = 2 * time.Minute

// wsEvent is one frame pushed to the websocket client.
type wsEvent struct {
	Type    string   `json:"type"` // chunk, done, error
	Content string   `json:"content,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type wsStreamer struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (s *wsStreamer) Send(chunk string) error {
	return wsjson.Write(s.ctx, s.conn, wsEvent{Type: "chunk", Content: chunk})
}

// handleChatWS streams chat answers over a websocket. Each read
// request gets a sequence of chunk frames closed by a done frame.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	// The server remembers the conversation for the life of the
	// connection; clients may still send explicit history to override.
	session := s.deps.Sessions.Open()
	defer s.deps.Sessions.Close(session)

	for {
		var req chatRequest
		if err := wsjson.Read(r.Context(), conn, &req); err != nil {
			// Client went away or sent garbage; either way the
			// conversation is over.
			conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), wsExchangeTimeout)
		s.answerOverWS(ctx, conn, session, &req)
		cancel()
	}
}

func (s *Server) answerOverWS(ctx context.Context, conn *websocket.Conn, session string, req *chatRequest) {
	if len(req.History) == 0 {
		req.History = s.deps.Sessions.History(session)
	}

	settings, history, err := s.resolveChat(req)
	if err != nil {
		_ = wsjson.Write(ctx, conn, wsEvent{Type: "error", Error: err.Error()})
		return
	}

	answer, err := s.deps.Orchestrator.Stream(ctx, req.Question, history, settings, &wsStreamer{ctx: ctx, conn: conn})
	if err != nil {
		_ = wsjson.Write(ctx, conn, wsEvent{Type: "error", Error: err.Error()})
		return
	}
	if err := s.deps.Sessions.AppendExchange(session, req.Question, answer.Text); err != nil {
		s.log.Warn("recording chat exchange failed", "error", err)
	}
	_ = wsjson.Write(ctx, conn, wsEvent{Type: "done", Content: answer.Text, Sources: answer.Sources})
}
