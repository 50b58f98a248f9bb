package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/comprl/comprl/internal/protocol"
)

// Client connects an Agent to a server and answers its requests.
type Client struct {
	url   string
	agent Agent
}

// New creates a client for the given websocket URL, e.g.
// "ws://localhost:8080/ws".
func New(serverURL string, agent Agent) *Client {
	return &Client{url: serverURL, agent: agent}
}

// Run connects and serves the agent until the server closes the connection
// or ctx is cancelled. A normal server-side close returns nil; the reason
// for a disconnect arrives through Agent.OnError just before.
func (c *Client) Run(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	// Tear the connection down when ctx is cancelled so the read loop
	// unblocks.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var f protocol.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		reply, err := c.handle(&f)
		if err != nil {
			// Report the problem instead of leaving the call hanging; the
			// server decides whether to keep us around.
			if f.ID != 0 {
				errReply := protocol.NewErrorReply(f.ID, err.Error())
				if werr := conn.WriteJSON(&errReply); werr != nil {
					return fmt.Errorf("write: %w", werr)
				}
			}
			continue
		}
		if reply != nil {
			if err := conn.WriteJSON(reply); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

func (c *Client) handle(f *protocol.Frame) (*protocol.Frame, error) {
	switch f.Method {
	case protocol.MethodAuth:
		return newReply(f.ID, protocol.AuthReply{Token: c.agent.Auth()})

	case protocol.MethodIsReady:
		return newReply(f.ID, protocol.ReadyReply{Ready: c.agent.IsReady()})

	case protocol.MethodGetAction:
		var data protocol.GetActionData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, fmt.Errorf("bad get_action payload: %w", err)
		}
		return newReply(f.ID, protocol.ActionReply{Action: c.agent.Step(data.Observation)})

	case protocol.MethodNotifyStart:
		var data protocol.StartData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, fmt.Errorf("bad notify_start payload: %w", err)
		}
		c.agent.OnStart(data.GameID)
		return nil, nil

	case protocol.MethodNotifyEnd:
		var data protocol.EndData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, fmt.Errorf("bad notify_end payload: %w", err)
		}
		c.agent.OnEnd(data.Result, data.Stats)
		return nil, nil

	case protocol.MethodNotifyInfo:
		var data protocol.MessageData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, fmt.Errorf("bad notify_info payload: %w", err)
		}
		c.agent.OnMessage(data.Msg)
		return nil, nil

	case protocol.MethodNotifyError:
		var data protocol.MessageData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return nil, fmt.Errorf("bad notify_error payload: %w", err)
		}
		c.agent.OnError(data.Msg)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown method %q", f.Method)
	}
}

func newReply(id uint64, result any) (*protocol.Frame, error) {
	f, err := protocol.NewReply(id, result)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
