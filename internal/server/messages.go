package server

import (
	"encoding/json"
	"time"

	"github.com/lox/holdemtable/internal/engine"
	"github.com/lox/holdemtable/internal/events"
	"github.com/lox/holdemtable/internal/timer"
)

// MessageType identifies the payload carried by a Message
type MessageType string

const (
	// Client -> server
	MsgAuth        MessageType = "auth"
	MsgJoinTable   MessageType = "join_table"
	MsgLeaveTable  MessageType = "leave_table"
	MsgSitOut      MessageType = "sit_out"
	MsgReturn      MessageType = "return"
	MsgAction      MessageType = "action"
	MsgMuckRequest MessageType = "muck_request"
	MsgHistory     MessageType = "history"

	// Server -> client
	MsgAuthResponse MessageType = "auth_response"
	MsgJoined       MessageType = "joined"
	MsgLeft         MessageType = "left"
	MsgSnapshot     MessageType = "snapshot"
	MsgTimer        MessageType = "timer"
	MsgHistoryData  MessageType = "history_data"
	MsgError        MessageType = "error"
)

// Message is the wire envelope for every WebSocket frame
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage wraps a payload in an envelope stamped with the current
// time
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client -> server payloads

type AuthData struct {
	PlayerName string `json:"playerName"`
}

type JoinTableData struct {
	TableID    string `json:"tableId"`
	SeatNumber *int   `json:"seatNumber,omitempty"`
	BuyIn      int64  `json:"buyIn"`
}

type LeaveTableData struct {
	TableID string `json:"tableId"`
}

type SitOutData struct {
	TableID string `json:"tableId"`
}

type ReturnData struct {
	TableID string `json:"tableId"`
	// PostBlind acknowledges posting the owed missed blind on return
	PostBlind bool `json:"postBlind"`
}

type ActionData struct {
	TableID string `json:"tableId"`
	Action  string `json:"action"`
	Amount  int64  `json:"amount,omitempty"`
}

type MuckRequestData struct {
	TableID string `json:"tableId"`
}

type HistoryData struct {
	TableID string `json:"tableId"`
	Limit   int    `json:"limit,omitempty"`
}

// Server -> client payloads

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID string `json:"playerId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type JoinedData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	Seat     int    `json:"seat"`
	Chips    int64  `json:"chips"`
}

type LeftData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	Chips    int64  `json:"chips"`
}

// SnapshotData carries a per-viewer sanitised table view
type SnapshotData struct {
	Snapshot engine.Snapshot `json:"snapshot"`
}

// TimerData carries an action-timer countdown event
type TimerData struct {
	Event timer.Event `json:"event"`
}

type HistoryResponseData struct {
	TableID string               `json:"tableId"`
	Hands   []events.HandSummary `json:"hands"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
