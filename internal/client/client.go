// Package client is a WebSocket client for the table server. Bots and
// tooling connect through it rather than speaking the wire protocol
// directly.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/holdemtable/internal/server"
)

// Handler receives server frames of the type it is registered for
type Handler func(*server.Message)

// Client is one connection to the table server
type Client struct {
	serverURL string
	logger    *log.Logger

	conn    *websocket.Conn
	send    chan *server.Message
	receive chan *server.Message

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	playerID string
	tableID  string
	handlers map[server.MessageType][]Handler
}

// New creates a client for the server at serverURL (http, https, ws or
// wss scheme). Connect must be called before use.
func New(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		serverURL: serverURL,
		logger:    logger.WithPrefix("client"),
		send:      make(chan *server.Message, 64),
		receive:   make(chan *server.Message, 64),
		ctx:       ctx,
		cancel:    cancel,
		handlers:  make(map[server.MessageType][]Handler),
	}
}

// Connect dials the server's WebSocket endpoint
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readPump()
	go c.writePump()
	go c.dispatch()

	c.logger.Debug("connected", "url", u.String())
	return nil
}

// Close tears the connection down
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.mu.Unlock()
	})
	return nil
}

// PlayerID returns the server-assigned player id, "" before Auth
func (c *Client) PlayerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// TableID returns the joined table, "" when not at a table
func (c *Client) TableID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tableID
}

// On registers a handler for a message type. Handlers run on the
// dispatch goroutine; they must not block.
func (c *Client) On(t server.MessageType, h Handler) {
	c.mu.Lock()
	c.handlers[t] = append(c.handlers[t], h)
	c.mu.Unlock()
}

// Auth introduces the player and waits for the server-assigned id
func (c *Client) Auth(ctx context.Context, playerName string) (string, error) {
	reply, err := c.request(ctx, server.MsgAuth, server.AuthData{PlayerName: playerName}, server.MsgAuthResponse)
	if err != nil {
		return "", err
	}
	var data server.AuthResponseData
	if err := decode(reply, &data); err != nil {
		return "", err
	}
	if !data.Success {
		return "", fmt.Errorf("auth rejected: %s", data.Error)
	}
	c.mu.Lock()
	c.playerID = data.PlayerID
	c.mu.Unlock()
	return data.PlayerID, nil
}

// Join takes a seat at a table. seat nil lets the server pick.
func (c *Client) Join(ctx context.Context, tableID string, seat *int, buyIn int64) (*server.JoinedData, error) {
	reply, err := c.request(ctx, server.MsgJoinTable, server.JoinTableData{
		TableID: tableID, SeatNumber: seat, BuyIn: buyIn,
	}, server.MsgJoined)
	if err != nil {
		return nil, err
	}
	var data server.JoinedData
	if err := decode(reply, &data); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tableID = tableID
	c.mu.Unlock()
	return &data, nil
}

// Leave gives up the seat and cashes out
func (c *Client) Leave(ctx context.Context, tableID string) (*server.LeftData, error) {
	reply, err := c.request(ctx, server.MsgLeaveTable, server.LeaveTableData{TableID: tableID}, server.MsgLeft)
	if err != nil {
		return nil, err
	}
	var data server.LeftData
	if err := decode(reply, &data); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.tableID = ""
	c.mu.Unlock()
	return &data, nil
}

// Act submits a betting action for the current hand
func (c *Client) Act(tableID, action string, amount int64) error {
	return c.sendTyped(server.MsgAction, server.ActionData{TableID: tableID, Action: action, Amount: amount})
}

// SitOut marks the player away between hands
func (c *Client) SitOut(tableID string) error {
	return c.sendTyped(server.MsgSitOut, server.SitOutData{TableID: tableID})
}

// Return brings a sitting-out player back into the game
func (c *Client) Return(tableID string, postBlind bool) error {
	return c.sendTyped(server.MsgReturn, server.ReturnData{TableID: tableID, PostBlind: postBlind})
}

// RequestMuck asks to muck at the coming showdown
func (c *Client) RequestMuck(tableID string) error {
	return c.sendTyped(server.MsgMuckRequest, server.MuckRequestData{TableID: tableID})
}

// History fetches the table's completed-hand summaries, newest first
func (c *Client) History(ctx context.Context, tableID string, limit int) (*server.HistoryResponseData, error) {
	reply, err := c.request(ctx, server.MsgHistory, server.HistoryData{TableID: tableID, Limit: limit}, server.MsgHistoryData)
	if err != nil {
		return nil, err
	}
	var data server.HistoryResponseData
	if err := decode(reply, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// WaitFor blocks until a frame of the given type arrives
func (c *Client) WaitFor(ctx context.Context, t server.MessageType) (*server.Message, error) {
	ch := make(chan *server.Message, 1)
	c.On(t, func(msg *server.Message) {
		select {
		case ch <- msg:
		default:
		}
	})

	select {
	case msg := <-ch:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

// request sends a frame and waits for the reply type, surfacing a
// protocol error frame as a Go error
func (c *Client) request(ctx context.Context, t server.MessageType, payload interface{}, replyType server.MessageType) (*server.Message, error) {
	replyCh := make(chan *server.Message, 1)
	errCh := make(chan *server.Message, 1)
	c.On(replyType, func(msg *server.Message) {
		select {
		case replyCh <- msg:
		default:
		}
	})
	c.On(server.MsgError, func(msg *server.Message) {
		select {
		case errCh <- msg:
		default:
		}
	})

	if err := c.sendTyped(t, payload); err != nil {
		return nil, err
	}

	select {
	case msg := <-replyCh:
		return msg, nil
	case msg := <-errCh:
		var data server.ErrorData
		if err := decode(msg, &data); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %s", data.Code, data.Message)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	}
}

func (c *Client) sendTyped(t server.MessageType, payload interface{}) error {
	msg, err := server.NewMessage(t, payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		return fmt.Errorf("send buffer full")
	}
}

func (c *Client) readPump() {
	defer func() { _ = c.Close() }()
	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}
		select {
		case c.receive <- &msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) dispatch() {
	for {
		select {
		case msg := <-c.receive:
			c.mu.RLock()
			handlers := append([]Handler(nil), c.handlers[msg.Type]...)
			c.mu.RUnlock()
			for _, h := range handlers {
				h(msg)
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func decode(msg *server.Message, v interface{}) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("malformed %s payload: %w", msg.Type, err)
	}
	return nil
}
