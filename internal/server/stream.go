package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/amrmuhaffez/muhaffez/internal/observe"
	"github.com/amrmuhaffez/muhaffez/internal/recitation"
)

// Client message types on /v1/session.
const (
	MsgTranscript = "transcript"
	MsgReset      = "reset"
	MsgRecording  = "recording"
)

// Server message types on /v1/session.
const (
	MsgSession  = "session"
	MsgSnapshot = "snapshot"
	MsgError    = "error"
)

const (
	writeTimeout = 5 * time.Second
	stopTimeout  = 5 * time.Second
)

// ClientMessage is sent by the client. Text and Final apply to transcript
// messages, Recording to recording messages.
type ClientMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Final     bool   `json:"final,omitempty"`
	Recording *bool  `json:"recording,omitempty"`
}

// ServerMessage is pushed to the client.
type ServerMessage struct {
	Type     string               `json:"type"`
	Session  string               `json:"session,omitempty"`
	Snapshot *recitation.Snapshot `json:"snapshot,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// latest holds the newest undelivered snapshot. Older undelivered snapshots
// are superseded; a slow client never blocks the session.
type latest struct {
	ch chan recitation.Snapshot
}

func newLatest() *latest { return &latest{ch: make(chan recitation.Snapshot, 1)} }

func (l *latest) put(s recitation.Snapshot) {
	for {
		select {
		case l.ch <- s:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := observe.Logger(ctx)

	pending := newLatest()
	id, sess, err := s.cfg.Sessions.Start(pending.put)
	if err != nil {
		_ = write(ctx, conn, ServerMessage{Type: MsgError, Error: err.Error()})
		conn.Close(websocket.StatusTryAgainLater, "session unavailable")
		return
	}
	ctx = observe.WithSession(ctx, id)
	log = observe.Logger(ctx)
	log.Info("session opened")
	defer func() {
		stopCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer stop()
		if err := s.cfg.Sessions.Stop(stopCtx, id); err != nil {
			log.Warn("stop session", "err", err)
		}
		log.Info("session closed")
	}()

	if err := write(ctx, conn, ServerMessage{Type: MsgSession, Session: id}); err != nil {
		return
	}

	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case snap := <-pending.ch:
				if err := write(ctx, conn, ServerMessage{Type: MsgSnapshot, Session: id, Snapshot: &snap}); err != nil {
					writeErr <- err
					cancel()
					return
				}
			}
		}
	}()

	err = s.readLoop(ctx, conn, id, sess)
	cancel()
	<-writeErr

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		conn.Close(websocket.StatusNormalClosure, "")
	case errors.Is(err, context.Canceled):
	default:
		log.Debug("session stream ended", "err", err)
		conn.Close(websocket.StatusInternalError, "stream error")
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, id string, sess *recitation.Session) error {
	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		switch msg.Type {
		case MsgTranscript:
			sess.Update(ctx, recitation.Transcript{Text: msg.Text, Final: msg.Final})
		case MsgReset:
			if err := s.cfg.Sessions.Reset(ctx, id); err != nil {
				return err
			}
		case MsgRecording:
			if msg.Recording == nil {
				if err := write(ctx, conn, ServerMessage{Type: MsgError, Error: "recording requires a boolean recording field"}); err != nil {
					return err
				}
				continue
			}
			sess.SetRecording(*msg.Recording)
		default:
			if err := write(ctx, conn, ServerMessage{Type: MsgError, Error: "unknown message type " + msg.Type}); err != nil {
				return err
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
