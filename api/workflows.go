package api

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/layout"
)

type layoutRequest struct {
	Nodes []flow.Node `json:"nodes"`
	Edges []flow.Edge `json:"edges"`
}

func (h *handlers) layout(c fiber.Ctx) error {
	var req layoutRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	g := flow.Graph{Nodes: req.Nodes, Edges: req.Edges}
	out := layout.Apply(g, h.Layout)
	return c.JSON(fiber.Map{
		"positions": layout.Compute(g, h.Layout),
		"nodes":     out.Nodes,
	})
}

func (h *handlers) saveWorkflow(c fiber.Ctx) error {
	var w flow.Workflow
	if err := c.Bind().JSON(&w); err != nil {
		return badRequest(c, "invalid body")
	}
	saved, err := h.Store.SaveWorkflow(c.Context(), &w)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (h *handlers) getWorkflow(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(w)
}

func (h *handlers) deleteWorkflow(c fiber.Ctx) error {
	if err := h.Store.DeleteWorkflow(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// layoutWorkflow arranges a saved workflow and stores the new positions.
func (h *handlers) layoutWorkflow(c fiber.Ctx) error {
	w, err := h.loadWorkflow(c)
	if err != nil {
		return fail(c, err)
	}
	g := layout.Apply(w.Graph(), h.Layout)
	w.Nodes, w.Edges = g.Nodes, g.Edges

	saved, err := h.Store.SaveWorkflow(c.Context(), w)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(saved)
}

func (h *handlers) deleteNode(c fiber.Ctx) error {
	id := c.Params("id")
	h.Logger.Info("Request to delete node", "nodeId", id)
	if err := h.Store.DeleteNode(c.Context(), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": fmt.Sprintf("Node %s deleted", id)})
}

func (h *handlers) loadWorkflow(c fiber.Ctx) (*flow.Workflow, error) {
	id := c.Params("id")
	w, err := h.Store.GetWorkflow(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("%w: %s", flow.ErrWorkflowNotFound, id)
	}
	return w, nil
}
