package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/engine"
)

type executeRequest struct {
	Nodes []flow.Node `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
	Order string      `json:"order"`
}

type orderRequest struct {
	Order string `json:"order"`
}

func (h *handlers) execute(c fiber.Ctx) error {
	var req executeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	order, err := engine.ParseOrder(req.Order)
	if err != nil {
		return badRequest(c, err.Error())
	}
	return h.start(c, engine.Request{
		Graph: flow.Graph{Nodes: req.Nodes, Edges: req.Edges},
		Order: order,
	})
}

func (h *handlers) executeWorkflow(c fiber.Ctx) error {
	var req orderRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	order, err := engine.ParseOrder(req.Order)
	if err != nil {
		return badRequest(c, err.Error())
	}

	w, err := h.loadWorkflow(c)
	if err != nil {
		return fail(c, err)
	}
	return h.start(c, engine.Request{Graph: w.Graph(), Order: order, WorkflowID: w.ID})
}

func (h *handlers) start(c fiber.Ctx, req engine.Request) error {
	id, err := h.Runner.StartRun(req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "executionId": id, "message": "Workflow started"})
}

func (h *handlers) getRun(c fiber.Ctx) error {
	id := c.Params("id")
	if run, ok := h.Runner.Run(id); ok {
		return c.JSON(run)
	}
	if h.Runs != nil {
		run, err := h.Runs.GetRun(c.Context(), id)
		if err != nil {
			return fail(c, err)
		}
		if run != nil {
			return c.JSON(run)
		}
	}
	return fail(c, flow.ErrRunNotFound)
}

func (h *handlers) listEvents(c fiber.Ctx) error {
	if h.Runs == nil {
		return fail(c, flow.ErrRunNotFound)
	}
	id := c.Params("id")
	if _, active := h.Runner.Run(id); !active {
		run, err := h.Runs.GetRun(c.Context(), id)
		if err != nil {
			return fail(c, err)
		}
		if run == nil {
			return fail(c, flow.ErrRunNotFound)
		}
	}
	events, err := h.Runs.ListEvents(c.Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(events)
}

func (h *handlers) cancelRun(c fiber.Ctx) error {
	if !h.Runner.Cancel(c.Params("id")) {
		return fail(c, flow.ErrRunNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
