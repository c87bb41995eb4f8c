package http

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/modelarena/arena/internal/services/arena/events"
)

const writeTimeout = 10 * time.Second

// registerStream mounts the observer WebSocket. Each connection gets a
// connected acknowledgement, one full state snapshot, and then the live
// event feed until it disconnects.
func (s *Server) registerStream(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleStream))
}

func (s *Server) handleStream(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	subscriberID, stream := s.engine.Broker().Subscribe()
	defer s.engine.Broker().Unsubscribe(subscriberID)

	if err := writeEvent(conn, events.Event{
		Kind:      events.KindConnected,
		Timestamp: time.Now().UTC(),
		Payload:   events.ConnectedPayload{SubscriberID: subscriberID},
	}); err != nil {
		return
	}

	snapshot, err := s.engine.Snapshot(context.Background())
	if err != nil {
		log.Printf("arena: stream %s: snapshot: %v", subscriberID, err)
		return
	}
	if err := writeEvent(conn, events.Event{
		Kind:      events.KindStateSnapshot,
		Timestamp: time.Now().UTC(),
		Payload:   snapshot,
	}); err != nil {
		return
	}

	// Reading only to notice the close; observers never send game input.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			if err := writeEvent(conn, event); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event events.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
