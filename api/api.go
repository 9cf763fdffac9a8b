// Package api is the HTTP boundary of the workflow server.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/layout"
)

// Runner is the part of the engine the API drives.
type Runner interface {
	StartRun(req engine.Request) (string, error)
	Run(executionID string) (flow.Run, bool)
	Cancel(executionID string) bool
}

// Deps are the collaborators of the HTTP handlers. Runs may be nil.
type Deps struct {
	Runner Runner
	Store  flow.Store
	Runs   flow.RunStore
	Layout layout.Config
	Logger *slog.Logger
}

type handlers struct {
	Deps
}

// New builds the fiber application with every route registered.
func New(d Deps) *fiber.App {
	h := &handlers{Deps: d}
	app := fiber.New(fiber.Config{AppName: "flow"})

	app.Use(recoverer.New())
	app.Use(cors.New())
	app.Use(h.logRequests)

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Workflow Execution Engine is Running")
	})
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", h.createSchema)
	app.Delete("/schema", h.dropSchema)

	// ── Execution ─────────────────────────────────────────────────────
	app.Post("/execute", h.execute)
	app.Get("/runs/:id", h.getRun)
	app.Get("/runs/:id/events", h.listEvents)
	app.Delete("/runs/:id", h.cancelRun)

	// ── Layout ────────────────────────────────────────────────────────
	app.Post("/layout", h.layout)

	// ── Saved workflows ───────────────────────────────────────────────
	app.Post("/workflows", h.saveWorkflow)
	app.Get("/workflows/:id", h.getWorkflow)
	app.Delete("/workflows/:id", h.deleteWorkflow)
	app.Post("/workflows/:id/execute", h.executeWorkflow)
	app.Post("/workflows/:id/layout", h.layoutWorkflow)

	// ── Nodes ─────────────────────────────────────────────────────────
	app.Delete("/node/:id", h.deleteNode)

	return app
}

// EventsPath is where the push channel is mounted next to the API.
const EventsPath = "/socket.io/"

// Mount serves app and the push channel from one net/http handler, so
// browsers reach both on the same origin. fasthttp cannot upgrade the
// websocket itself, so the fiber app runs behind the adaptor.
func Mount(app *fiber.App, events http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EventsPath, events)
	mux.Handle("/", adaptor.FiberApp(app))
	return mux
}

func (h *handlers) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	h.Logger.Debug("HTTP request",
		"method", c.Method(), "path", c.Path(), "status", c.Response().StatusCode(), "latency", time.Since(start))
	return err
}

// fail maps err onto a status code and the {"error": ...} body.
func fail(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, flow.ErrCycleDetected):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrInvalidGraph):
		status = fiber.StatusBadRequest
	case errors.Is(err, flow.ErrWorkflowNotFound), errors.Is(err, flow.ErrRunNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, engine.ErrTooManyRuns), errors.Is(err, engine.ErrShuttingDown):
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func (h *handlers) createSchema(c fiber.Ctx) error {
	if err := h.Store.CreateSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (h *handlers) dropSchema(c fiber.Ctx) error {
	if err := h.Store.DropSchema(c.Context()); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}
