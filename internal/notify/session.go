package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"restaurant-orders/internal/xpkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 512
)

// Session is a websocket subscriber. Writes go through a bounded queue
// drained by a single writer goroutine; a reader goroutine watches for the
// peer going away.
type Session struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	mylog logger.Logger
}

func NewSession(conn *websocket.Conn, buffer int, mylog logger.Logger) *Session {
	if buffer <= 0 {
		buffer = 16
	}
	id := uuid.NewString()
	return &Session{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
		mylog: mylog.With("conn_id", id),
	}
}

// Start launches the reader and writer goroutines.
func (s *Session) Start() {
	go s.writeLoop()
	go s.readLoop()
}

func (s *Session) ID() string { return s.id }

func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Close sends a close frame with code and reason, then tears the session down.
func (s *Session) Close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	s.shutdown()
}

func (s *Session) shutdown() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *Session) readLoop() {
	defer s.shutdown()

	s.conn.SetReadLimit(maxInboundSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		// subscribers never send anything meaningful; reading drives
		// control frames and detects the peer leaving
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.mylog.Action("ws_read_failed").Warn("Subscriber connection dropped", "error", err.Error())
			}
			return
		}
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.shutdown()
	}()

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.mylog.Action("ws_write_failed").Error("Failed to push message", err)
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Refuse closes a connection that was never admitted.
func Refuse(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}
