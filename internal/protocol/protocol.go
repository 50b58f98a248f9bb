// Package protocol defines the JSON frames exchanged between the server and
// remote agents over the websocket transport.
//
// All calls run server→agent. A request carries an id, a method and a data
// payload; the agent answers with the same id and either a result or an
// error string. Frames without an id are one-way notifications and must not
// be answered.
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	MethodAuth        = "auth"
	MethodIsReady     = "is_ready"
	MethodGetAction   = "get_action"
	MethodNotifyStart = "notify_start"
	MethodNotifyEnd   = "notify_end"
	MethodNotifyInfo  = "notify_info"
	MethodNotifyError = "notify_error"
)

// Frame is the wire envelope.
type Frame struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// IsReply reports whether the frame answers a pending request.
func (f *Frame) IsReply() bool {
	return f.ID != 0 && f.Method == ""
}

func NewRequest(id uint64, method string, data any) (Frame, error) {
	raw, err := marshalPayload(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s request: %w", method, err)
	}
	return Frame{ID: id, Method: method, Data: raw}, nil
}

func NewNotification(method string, data any) (Frame, error) {
	raw, err := marshalPayload(data)
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s notification: %w", method, err)
	}
	return Frame{Method: method, Data: raw}, nil
}

func NewReply(id uint64, result any) (Frame, error) {
	raw, err := marshalPayload(result)
	if err != nil {
		return Frame{}, fmt.Errorf("encode reply %d: %w", id, err)
	}
	return Frame{ID: id, Result: raw}, nil
}

func NewErrorReply(id uint64, msg string) Frame {
	return Frame{ID: id, Error: msg}
}

func marshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Request and reply payloads, one pair per method.

type AuthReply struct {
	Token string `json:"token"`
}

type ReadyReply struct {
	Ready bool `json:"ready"`
}

type GetActionData struct {
	Observation []float64 `json:"observation"`
}

type ActionReply struct {
	Action []float64 `json:"action"`
}

type StartData struct {
	GameID string `json:"game_id"`
}

type EndData struct {
	Result bool      `json:"result"`
	Stats  []float64 `json:"stats"`
}

type MessageData struct {
	Msg string `json:"msg"`
}
