package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"bus-tracker/internal/shared/util"
)

const (
	authTimeout  = 5 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AuthMessage must be the first frame a client sends.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type WSFrame struct {
	Type    string      `json:"type"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// VehicleWSHandler streams a vehicle's location record and progress. Each
// frame carries the latest value; intermediate values may be skipped.
func (h *Handler) VehicleWSHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := util.NormalizeVehicleID(r.PathValue("vehicle_id"))
	if vehicleID == "" {
		util.WriteJSONError(w, "vehicle id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("VehicleWSHandler", "upgrade failed: "+err.Error())
		return
	}
	defer conn.Close()

	if !h.authenticateWS(conn) {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before reporting success so the first frames are the current values.
	sub := h.locations.Subscribe(vehicleID)
	defer sub.Close()

	progressCh, err := h.progress.Watch(ctx, vehicleID)
	if err != nil {
		h.logger.Error("VehicleWSHandler", "watch progress for "+vehicleID, err)
		writeFrame(conn, WSFrame{Type: "error", Message: "progress unavailable"})
		return
	}

	writeFrame(conn, WSFrame{Type: "auth_success", Message: "authenticated"})
	h.logger.Info("VehicleWSHandler", "observer connected to "+vehicleID)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reads only serve pongs and close frames.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("VehicleWSHandler", "observer left "+vehicleID)
			return
		case rec, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeFrame(conn, WSFrame{Type: "location", Data: toView(rec)}); err != nil {
				return
			}
		case snap, ok := <-progressCh:
			if !ok {
				return
			}
			if err := writeFrame(conn, WSFrame{Type: "progress", Data: snap}); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) authenticateWS(conn *websocket.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(authTimeout))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			writeFrame(conn, WSFrame{Type: "error", Message: "auth timeout"})
			return false
		}

		var auth AuthMessage
		if err := json.Unmarshal(msg, &auth); err != nil || auth.Type != "auth" {
			continue
		}

		if _, ok := h.auth.ParseToken(auth.Token); !ok {
			writeFrame(conn, WSFrame{Type: "error", Message: "invalid token"})
			return false
		}
		return true
	}
}

func writeFrame(conn *websocket.Conn, frame WSFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
