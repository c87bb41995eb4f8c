// Package http exposes the arena over a JSON control API and a WebSocket
// event stream. Mutating routes call straight into the engine; reads are
// snapshots and never wait on a running step.
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/modelarena/arena/internal/services/arena/domain"
	"github.com/modelarena/arena/internal/services/arena/engine"
	"github.com/modelarena/arena/internal/services/arena/storage"
)

// Server wires the engine and stores into a fiber application.
type Server struct {
	app    *fiber.App
	engine *engine.Engine
	stores storage.Stores
}

// NewServer builds the application with all routes registered.
func NewServer(eng *engine.Engine, stores storage.Stores) *Server {
	server := &Server{
		engine: eng,
		stores: stores,
	}

	app := fiber.New(fiber.Config{
		AppName:      "arena",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	api := app.Group("/api")
	api.Post("/sessions", server.createSession)
	api.Get("/sessions", server.listSessions)
	api.Get("/sessions/:id", server.getSession)
	api.Get("/sessions/:id/rounds", server.listRounds)
	api.Post("/sessions/:id/start", server.startSession)
	api.Post("/sessions/:id/pause", server.pauseSession)
	api.Post("/sessions/:id/resume", server.resumeSession)
	api.Post("/sessions/:id/end", server.endSession)
	api.Post("/advance", server.advance)
	api.Post("/undo", server.undo)
	api.Post("/cleanup", server.cleanupFailedStep)
	api.Get("/state", server.getState)
	api.Get("/rounds/:id/steps", server.listSteps)

	admin := app.Group("/api/admin")
	admin.Get("/settings", server.getSettings)
	admin.Put("/settings", server.putSettings)
	admin.Get("/participants", server.listParticipants)
	admin.Post("/participants", server.createParticipant)
	admin.Put("/participants/:id", server.updateParticipant)
	admin.Delete("/participants/:id", server.deleteParticipant)

	server.registerStream(app)

	server.app = app
	return server
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the given address until Shutdown.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// errorHandler maps domain errors onto HTTP statuses so handlers can
// return them unwrapped.
func errorHandler(c *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrSessionConflict),
		errors.Is(err, domain.ErrStepInFlight):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrInvalidTotalRounds),
		errors.Is(err, domain.ErrInvalidParticipants):
		status = fiber.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotActive),
		errors.Is(err, domain.ErrSessionPaused),
		errors.Is(err, domain.ErrSessionTerminal),
		errors.Is(err, domain.ErrRoundTerminal),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNothingToUndo),
		errors.Is(err, domain.ErrUndoLimit),
		errors.Is(err, domain.ErrNothingToCleanUp):
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
