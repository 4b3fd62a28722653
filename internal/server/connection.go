package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtable/internal/errkind"
	"github.com/lox/holdemtable/internal/handid"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// ErrConnectionClosed is returned when sending on a closed connection
var ErrConnectionClosed = errors.New("connection closed")

// Connection is one WebSocket client: a player or a spectator
type Connection struct {
	conn    *websocket.Conn
	send    chan *Message
	logger  *log.Logger
	service *TableService

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu         sync.RWMutex
	playerID   string
	playerName string
	tableID    string
	sub        *Subscription
}

// NewConnection wraps an upgraded WebSocket connection
func NewConnection(conn *websocket.Conn, logger *log.Logger, service *TableService) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		logger:  logger.WithPrefix("conn"),
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close tears the connection down
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.sub != nil {
			c.service.Hub().Unsubscribe(c.sub)
			c.sub = nil
		}
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message; a full buffer closes the connection
// rather than blocking the table
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("connection send buffer full, closing", "player", c.PlayerID())
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// PlayerID returns the authenticated player id, "" before auth
func (c *Connection) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// TableID returns the joined table, "" when not at a table
func (c *Connection) TableID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError(msg.RequestID, errkind.New(errkind.InvalidInput, "malformed message: %v", err))
			continue
		}
		c.handleMessage(&msg)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one client frame
func (c *Connection) handleMessage(msg *Message) {
	switch msg.Type {
	case MsgAuth:
		c.handleAuth(msg)
	case MsgJoinTable:
		c.handleJoin(msg)
	case MsgLeaveTable:
		c.handleLeave(msg)
	case MsgSitOut:
		var data SitOutData
		if c.decode(msg, &data) {
			c.finish(msg.RequestID, c.service.SitOut(c.ctx, data.TableID, c.PlayerID()))
		}
	case MsgReturn:
		var data ReturnData
		if c.decode(msg, &data) {
			c.finish(msg.RequestID, c.service.Return(c.ctx, data.TableID, c.PlayerID(), data.PostBlind))
		}
	case MsgAction:
		var data ActionData
		if c.decode(msg, &data) {
			c.finish(msg.RequestID, c.service.HandleAction(c.ctx, data.TableID, c.PlayerID(), data.Action, data.Amount))
		}
	case MsgMuckRequest:
		var data MuckRequestData
		if c.decode(msg, &data) {
			c.finish(msg.RequestID, c.service.RequestMuck(c.ctx, data.TableID, c.PlayerID()))
		}
	case MsgHistory:
		c.handleHistory(msg)
	default:
		c.sendError(msg.RequestID, errkind.New(errkind.InvalidInput, "unknown message type %q", msg.Type))
	}
}

func (c *Connection) handleAuth(msg *Message) {
	var data AuthData
	if err := json.Unmarshal(msg.Data, &data); err != nil || data.PlayerName == "" {
		c.reply(msg.RequestID, MsgAuthResponse, AuthResponseData{Success: false, Error: "player name required"})
		return
	}

	playerID := handid.New()
	c.mu.Lock()
	c.playerID = playerID
	c.playerName = data.PlayerName
	c.mu.Unlock()

	c.logger.Info("player authenticated", "player", playerID, "name", data.PlayerName)
	c.reply(msg.RequestID, MsgAuthResponse, AuthResponseData{Success: true, PlayerID: playerID})
}

func (c *Connection) handleJoin(msg *Message) {
	var data JoinTableData
	if !c.decode(msg, &data) {
		return
	}
	if c.PlayerID() == "" {
		c.sendError(msg.RequestID, errkind.New(errkind.PreconditionFailed, "authenticate first"))
		return
	}

	c.mu.RLock()
	name := c.playerName
	c.mu.RUnlock()

	joined, err := c.service.JoinTable(c.ctx, data.TableID, c.PlayerID(), name, data.SeatNumber, data.BuyIn)
	if err != nil {
		c.sendError(msg.RequestID, err)
		return
	}

	sub := c.service.Hub().Subscribe(data.TableID, c.PlayerID())
	c.mu.Lock()
	c.tableID = data.TableID
	c.sub = sub
	c.mu.Unlock()
	go c.forward(sub)

	c.reply(msg.RequestID, MsgJoined, joined)
}

func (c *Connection) handleLeave(msg *Message) {
	var data LeaveTableData
	if !c.decode(msg, &data) {
		return
	}

	left, err := c.service.LeaveTable(c.ctx, data.TableID, c.PlayerID())
	if err != nil {
		c.sendError(msg.RequestID, err)
		return
	}

	c.mu.Lock()
	if c.sub != nil {
		c.service.Hub().Unsubscribe(c.sub)
		c.sub = nil
	}
	c.tableID = ""
	c.mu.Unlock()

	c.reply(msg.RequestID, MsgLeft, left)
}

func (c *Connection) handleHistory(msg *Message) {
	var data HistoryData
	if !c.decode(msg, &data) {
		return
	}
	hands, err := c.service.History(c.ctx, data.TableID, data.Limit)
	if err != nil {
		c.sendError(msg.RequestID, err)
		return
	}
	c.reply(msg.RequestID, MsgHistoryData, HistoryResponseData{TableID: data.TableID, Hands: hands})
}

// forward drains the table subscription into the client's send queue
func (c *Connection) forward(sub *Subscription) {
	for {
		select {
		case <-sub.Done():
			return
		case <-c.ctx.Done():
			return
		case ev := <-sub.TimerEvents():
			if msg, err := NewMessage(MsgTimer, TimerData{Event: ev}); err == nil {
				_ = c.SendMessage(msg)
			}
		case <-sub.Ready():
			if snap, ok := sub.Latest(); ok {
				if msg, err := NewMessage(MsgSnapshot, SnapshotData{Snapshot: snap}); err == nil {
					_ = c.SendMessage(msg)
				}
			}
		}
	}
}

// decode unmarshals a payload, reporting malformed frames to the client
func (c *Connection) decode(msg *Message, v interface{}) bool {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.sendError(msg.RequestID, errkind.New(errkind.InvalidInput, "malformed payload: %v", err))
		return false
	}
	return true
}

func (c *Connection) finish(requestID string, err error) {
	if err != nil {
		c.sendError(requestID, err)
	}
}

func (c *Connection) reply(requestID string, t MessageType, data interface{}) {
	msg, err := NewMessage(t, data)
	if err != nil {
		c.logger.Error("failed to encode reply", "type", t, "error", err)
		return
	}
	msg.RequestID = requestID
	_ = c.SendMessage(msg)
}

func (c *Connection) sendError(requestID string, err error) {
	code := "internal"
	switch errkind.KindOf(err) {
	case errkind.InvalidInput:
		code = "invalid_input"
	case errkind.PreconditionFailed:
		code = "precondition_failed"
	case errkind.ValidationRejected:
		code = "validation_rejected"
	case errkind.Conflict:
		code = "conflict"
	case errkind.InvalidState:
		code = "invalid_state"
	}
	c.reply(requestID, MsgError, ErrorData{Code: code, Message: err.Error()})
}
