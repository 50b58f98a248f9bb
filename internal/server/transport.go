package server

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comprl/comprl/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	errTransportClosed = errors.New("transport closed")
	errSendBufferFull  = errors.New("send buffer full")
)

// Transport is the framed connection a session writes to. Implementations
// must be safe to call from the scheduler goroutine while their pumps run on
// their own goroutines.
type Transport interface {
	// Send queues one frame for delivery. It never blocks: a backlogged
	// connection returns an error and the frame is dropped.
	Send(f protocol.Frame) error

	// Close shuts the connection down after flushing queued frames. The
	// reason is carried in the close frame. Idempotent.
	Close(reason string)
}

// wsTransport runs a websocket connection with the usual read/write pump
// pair. All inbound events are handed to callbacks wired in start; the
// server posts them onto the scheduler.
type wsTransport struct {
	conn *websocket.Conn
	send chan []byte

	closeReason string
	closeCh     chan struct{}
	closeOnce   sync.Once
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		closeCh: make(chan struct{}),
	}
}

func (t *wsTransport) Send(f protocol.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case <-t.closeCh:
		return errTransportClosed
	default:
	}
	select {
	case t.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

func (t *wsTransport) Close(reason string) {
	t.closeOnce.Do(func() {
		t.closeReason = reason
		close(t.closeCh)
	})
}

// start launches the pumps. onFrame receives every decoded frame, onInvalid
// fires for frames that are not valid JSON, onClosed fires once when the
// read side dies (remote close, network error or local Close).
func (t *wsTransport) start(onFrame func(protocol.Frame), onInvalid func(), onClosed func()) {
	go t.writePump()
	go t.readPump(onFrame, onInvalid, onClosed)
}

func (t *wsTransport) readPump(onFrame func(protocol.Frame), onInvalid func(), onClosed func()) {
	defer func() {
		t.conn.Close()
		onClosed()
	}()

	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		var f protocol.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			onInvalid()
			continue
		}
		onFrame(f)
	}
}

func (t *wsTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		t.conn.Close()
	}()

	for {
		select {
		case msg := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-t.closeCh:
			// Flush queued frames so the disconnect reason reaches the
			// agent before the close frame.
			for {
				select {
				case msg := <-t.send:
					t.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := t.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					t.conn.SetWriteDeadline(time.Now().Add(writeWait))
					t.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, t.closeReason))
					return
				}
			}
		}
	}
}
