package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"petsos/models"
	"petsos/sos"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// LiveHandler streams case snapshots over a websocket. Each connection is its
// own observer, so the first frame is the current snapshot.
type LiveHandler struct {
	svc      sos.CaseService
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewLiveHandler(svc sos.CaseService, allowedOrigins []string, logger *logrus.Logger) *LiveHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &LiveHandler{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origins["*"] || origins[origin]
			},
		},
	}
}

// SnapshotFrame is one websocket message.
type SnapshotFrame struct {
	Cases []models.SOSCase `json:"cases"`
	Count int              `json:"count"`
}

// liveConn serializes writes from the observer and the pinger.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *liveConn) write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return fn()
}

func (h *LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	lc := &liveConn{conn: conn}
	log := h.logger.WithField("remote", r.RemoteAddr)

	sub, err := h.svc.ObserveCases(r.Context(), func(cases []models.SOSCase) {
		err := lc.write(func() error {
			return conn.WriteJSON(SnapshotFrame{Cases: cases, Count: len(cases)})
		})
		if err != nil {
			log.WithError(err).Debug("snapshot write failed")
			conn.Close()
		}
	})
	if err != nil {
		log.WithError(err).Error("❌ Failed to observe cases")
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "unavailable"))
		conn.Close()
		return
	}
	log.WithField("observer", sub.ID()).Info("live stream opened")

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := lc.write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// clients only send control frames; reading drives pong and close handling
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Debug("live stream read error")
			}
			break
		}
	}

	close(done)
	sub.Cancel()
	conn.Close()
	log.WithField("observer", sub.ID()).Info("live stream closed")
}
