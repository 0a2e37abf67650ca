package ws

import (
	"encoding/json"
	"sync"
	"time"

	"colorsnap/internal/logger"
	"colorsnap/internal/session"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one websocket connection attached to a player's session.
type Client struct {
	ID      string
	Address common.Address
	Conn    *websocket.Conn
	Send    chan []byte
	Hub     *Hub
	Session *session.Session
	Done    chan struct{}

	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, hub *Hub, s *session.Session) *Client {
	return &Client{
		ID:      uuid.NewString(),
		Address: s.Address(),
		Conn:    conn,
		Send:    make(chan []byte, sendBuffer),
		Hub:     hub,
		Session: s,
		Done:    make(chan struct{}),
	}
}

// Run serves the connection until either side closes it.
func (c *Client) Run() {
	events, unsubscribe := c.Session.Subscribe()
	defer unsubscribe()

	c.Hub.Register(c)
	defer c.Hub.Unregister(c)

	go c.writePump()

	c.queue(MsgReady, ReadyPayload{ClientID: c.ID, Address: c.Address.Hex()})
	v := c.Session.View()
	c.queue(MsgState, &v)

	go c.forward(events)
	c.readPump()
}

// Close ends the connection; safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.Done)
		_ = c.Conn.Close()
	})
}

func (c *Client) queue(typ string, payload any) {
	msg, err := encode(typ, payload)
	if err != nil {
		logger.Error("ws encode failed", "client", c.ID, "type", typ, "error", err)
		return
	}

	select {
	case <-c.Done:
	case c.Send <- msg:
	default:
		logger.Warn("ws send buffer full, dropping message", "client", c.ID, "type", typ)
	}
}

// forward relays session events until the subscription ends. A closed
// subscription means the session is gone, so the socket is closed too.
func (c *Client) forward(events <-chan session.Event) {
	for {
		select {
		case <-c.Done:
			return
		case ev, ok := <-events:
			if !ok {
				c.Close()
				return
			}
			switch ev.Type {
			case session.EventState:
				c.queue(MsgState, ev.View)
			case session.EventTx:
				c.queue(MsgTx, ev.Tx)
			case session.EventCompleted:
				c.queue(MsgCompleted, ev.Completed)
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.Close()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "client", c.ID, "error", err)
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.Done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "client", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(raw []byte) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		c.queue(MsgError, ErrorPayload{Message: "malformed message"})
		return
	}
	c.Session.Touch()

	switch m.Type {
	case MsgPing:
		c.queue(MsgPong, nil)

	case MsgClick:
		var p ClickPayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			c.queue(MsgError, ErrorPayload{Action: m.Type, Message: "invalid payload"})
			return
		}
		ok, err := c.Session.ClickBottle(p.Index)
		c.reply(m.Type, ok, err)

	case MsgShowTarget:
		c.reply(m.Type, c.Session.ShowTarget(), nil)

	case MsgSetName:
		var p NamePayload
		if err := json.Unmarshal(m.Payload, &p); err != nil {
			c.queue(MsgError, ErrorPayload{Action: m.Type, Message: "invalid payload"})
			return
		}
		err := c.Session.SetName(p.Name)
		c.reply(m.Type, err == nil, err)

	case MsgStartGame:
		err := c.Session.StartGame()
		c.reply(m.Type, err == nil, err)

	case MsgSubmit:
		err := c.Session.SubmitResult()
		c.reply(m.Type, err == nil, err)

	case MsgEndGame:
		err := c.Session.EndGame()
		c.reply(m.Type, err == nil, err)

	default:
		c.queue(MsgError, ErrorPayload{Action: m.Type, Message: "unknown message type"})
	}
}

func (c *Client) reply(action string, accepted bool, err error) {
	if err != nil {
		c.queue(MsgError, ErrorPayload{Action: action, Message: err.Error()})
		return
	}
	c.queue(MsgAck, AckPayload{Action: action, Accepted: accepted})
}
