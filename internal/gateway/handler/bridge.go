package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"previewsync/internal/patch"
	"previewsync/internal/preview"
)

const (
	bridgeWSWriteWait = 10 * time.Second
	bridgeWSPongWait  = 60 * time.Second
	bridgeWSPingEvery = (bridgeWSPongWait * 9) / 10
)

var bridgeWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// HandleBridgeWS attaches the preview bridge: outbound reconciler messages
// flow to the embedded preview and inbound handshake/select/text-update
// messages flow into the session. One connection per document replaces any
// previous send hook.
func (h *EngineHandler) HandleBridgeWS(w http.ResponseWriter, r *http.Request) {
	documentID := strings.TrimSpace(r.PathValue("id"))
	if documentID == "" {
		http.Error(w, "document id is required", http.StatusBadRequest)
		return
	}
	s := h.mgr.Open(documentID, "")

	conn, err := bridgeWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(bridgeWSPongWait)); err != nil {
		log.Printf("bridge[%s]: set read deadline failed: %v", documentID, err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(bridgeWSPongWait))
	})

	writeCh := make(chan preview.Message, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(bridgeWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(bridgeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(bridgeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	s.Reconciler().SetSend(func(msg preview.Message) {
		pushBridgeWS(writeCh, msg)
	})
	defer s.Reconciler().SetSend(nil)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			cancel()
			<-writerDone
			return
		}
		in, err := preview.ParseInbound(data)
		if err != nil {
			log.Printf("bridge[%s]: %v", documentID, err)
			continue
		}
		switch in.Type {
		case preview.MsgVisualEditReady, preview.MsgHotReloadReady:
			s.Reconciler().HandleReady(in.Type)
		case preview.MsgVisualEditSelect:
			s.SetSelected(in.Selected)
		case preview.MsgVisualEditTextUpdate:
			if _, err := s.ApplyTextUpdate(*in.TextUpdate); err != nil {
				if errors.Is(err, patch.ErrNotFound) {
					log.Printf("bridge[%s]: text update did not match any file, files untouched", documentID)
					continue
				}
				log.Printf("bridge[%s]: text update: %v", documentID, err)
			}
		}
	}
}

// pushBridgeWS never blocks the reconciler: when the connection is slow the
// oldest queued message is dropped in favor of the newest.
func pushBridgeWS(writeCh chan preview.Message, out preview.Message) {
	if writeCh == nil {
		return
	}
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
