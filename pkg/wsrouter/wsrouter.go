// Package wsrouter routes typed JSON messages read from a websocket
// connection to registered handlers.
package wsrouter

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
)

// Message is the wire envelope. Raw holds the frame exactly as it was
// received, for handlers that relay the message unchanged.
type Message struct {
	Type   string          `json:"type"`
	RoomId string          `json:"roomId"`
	Data   json.RawMessage `json:"data"`

	Raw []byte `json:"-"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, msg Message) error

type Middleware func(next HandlerFunc) HandlerFunc

type WSRouter struct {
	routes      map[string]HandlerFunc
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

func (r *WSRouter) wrap(handler HandlerFunc) HandlerFunc {
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	return handler
}

// ServeConn reads messages until the connection fails. Malformed
// frames and unknown message types are skipped: clients are never
// disconnected for sending something this server does not understand.
// Handler errors do not terminate the loop either; surfacing them is
// middleware's job.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		msg.Raw = raw

		handler, exists := r.routes[msg.Type]
		if !exists {
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		r.wrap(handler)(msgCtx, conn, msg)
	}
}
