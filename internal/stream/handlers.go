package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:requestID", websocket.New(func(c *websocket.Conn) {
		requestID := c.Params("requestID")
		listener := hub.Listen(requestID)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for event := range listener.Events {
				if err := c.WriteMessage(websocket.TextMessage, event); err != nil {
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// dropping closes the event channel, which unblocks the writer
		hub.Drop(listener)
		<-done
	}))
}
