package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/grading-engine/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamMessage is the envelope for grading stream frames.
//
// Types: "accepted" (grading started), "test_result" (one per completed
// test, in order), "complete" (final GradeResponse), "error".
type StreamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// handleGradeStream grades a submission over a WebSocket, pushing each
// test result as it completes. The client sends exactly one GradeRequest
// frame and reads until "complete" or "error".
func (s *Server) handleGradeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	var req models.GradeRequest
	if err := conn.ReadJSON(&req); err != nil {
		s.sendStreamError(conn, "invalid grade request")
		return
	}

	if code, message := validateGradeRequest(&req); code != "" {
		s.sendStreamError(conn, message)
		return
	}

	ok, err := s.gate.TryAcquire(r.Context(), req.UserID, req.TaskID)
	if err != nil {
		slog.Warn("debounce gate unavailable, admitting request", "error", err)
	} else if !ok {
		s.sendStreamError(conn, "a submission for this task is already being graded")
		return
	}

	slog.Info("grading stream connected", "user", req.UserID, "task", req.TaskID)
	s.sendStreamMessage(conn, StreamMessage{Type: "accepted"})

	resp, err := s.grader.Grade(r.Context(), &req, func(tr models.TestResult) {
		s.sendStreamMessage(conn, StreamMessage{Type: "test_result", Data: tr})
	})
	if err != nil {
		slog.Error("streamed grading failed", "error", err, "user", req.UserID, "task", req.TaskID)
		s.sendStreamError(conn, "failed to grade submission")
		return
	}

	s.sendStreamMessage(conn, StreamMessage{Type: "complete", Data: resp})
	slog.Info("grading stream finished", "user", req.UserID, "task", req.TaskID)
}

func (s *Server) sendStreamMessage(conn *websocket.Conn, msg StreamMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal stream message", "error", err)
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send stream message", "error", err)
		return err
	}
	return nil
}

func (s *Server) sendStreamError(conn *websocket.Conn, message string) {
	s.sendStreamMessage(conn, StreamMessage{
		Type: "error",
		Data: message,
	})
}
