package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsRequest is one prompt sent over the socket. ID is echoed back so
// clients can match answers to questions.
type wsRequest struct {
	ID string `json:"id"`
	promptPayload
}

// wsResponse is either an answer or an error.
type wsResponse struct {
	Type     string   `json:"type"` // "response" or "error"
	ID       string   `json:"id,omitempty"`
	Response string   `json:"response,omitempty"`
	Chunks   []string `json:"chunks,omitempty"`
	Error    string   `json:"error,omitempty"`
	Status   int      `json:"status,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{}
	if s.cfg.AllowAll {
		u.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return u
}

// handleWebSocket answers prompts one at a time until the client closes the
// connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", zap.Error(err))
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, wsResponse{Type: "error", Error: "invalid message format", Status: http.StatusBadRequest})
			continue
		}

		res, err := s.service.Prompt(r.Context(), req.request())
		if err != nil {
			s.send(conn, wsResponse{Type: "error", ID: req.ID, Error: err.Error(), Status: statusFor(err)})
			continue
		}
		s.send(conn, wsResponse{Type: "response", ID: req.ID, Response: res.Response, Chunks: res.Chunks})
	}
}

func (s *Server) send(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		s.logger.Warn("websocket write", zap.Error(err))
	}
}

