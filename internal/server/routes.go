package server

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Get("/health", s.healthHandler)

	api := s.App.Group("/api")
	api.Get("/status", s.statusHandler)
	api.Get("/balances", s.balancesHandler)
	api.Get("/quotes", s.quotesHandler)
	api.Get("/markets", s.marketsHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws/status", websocket.New(s.statusStream))
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *FiberServer) statusHandler(c *fiber.Ctx) error {
	return c.JSON(s.status.Status())
}

func (s *FiberServer) balancesHandler(c *fiber.Ctx) error {
	return c.JSON(s.balances.Snapshot())
}

func (s *FiberServer) quotesHandler(c *fiber.Ctx) error {
	return c.JSON(s.quotes.Quotes())
}

func (s *FiberServer) marketsHandler(c *fiber.Ctx) error {
	return c.JSON(s.markets.Markets())
}

// statusStream pushes the status every pushInterval until the client goes away.
func (s *FiberServer) statusStream(c *websocket.Conn) {
	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		if err := c.WriteJSON(s.status.Status()); err != nil {
			return
		}
		<-ticker.C
	}
}
