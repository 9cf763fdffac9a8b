package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/broadcast"
	"github.com/meikuraledutech/flow/ctxlog"
	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/layout"
	"github.com/meikuraledutech/flow/memory"
)

func main() {
	ctx := context.Background()
	logger := ctxlog.New("info", "text", os.Stderr)

	// Everything stays in memory; the server swaps in postgres when
	// DATABASE_URL is set.
	store := memory.New()

	// ── Save a workflow ───────────────────────────────────────────────
	wf, err := store.SaveWorkflow(ctx, &flow.Workflow{
		Name: "lead intake",
		Nodes: []flow.Node{
			{ID: "1", Type: flow.NodeStart, Data: flow.NodeData{Label: "New Lead"}},
			{ID: "2", Type: flow.NodeAction, Data: flow.NodeData{Message: "Hello"}},
			{ID: "3", Type: flow.NodeEnd},
		},
		Edges: []flow.Edge{
			{Source: "1", Target: "2"},
			{Source: "2", Target: "3"},
		},
	})
	if err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Println("saved workflow", wf.ID)

	// ── Auto layout ───────────────────────────────────────────────────
	g := layout.Apply(wf.Graph(), layout.DefaultConfig())
	for _, n := range g.Nodes {
		fmt.Printf("  %s (%s) at %.0f,%.0f\n", n.ID, n.Type, n.Position.X, n.Position.Y)
	}

	// ── Execute and follow the events ─────────────────────────────────
	hub := broadcast.New(logger)
	defer hub.Close()

	opts := engine.DefaultOptions()
	opts.StepDelay = 500 * time.Millisecond
	eng := engine.New(hub, store, logger, opts)

	sub := hub.Subscribe(broadcast.AllTopics, 0)
	defer sub.Close()

	id, err := eng.StartRun(engine.Request{Graph: g, WorkflowID: wf.ID})
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	fmt.Println("started execution", id)

	for ev := range sub.Events() {
		out, _ := json.Marshal(ev.Payload())
		fmt.Printf("%-16s %s\n", ev.Kind, out)
		if ev.Kind == flow.EventWorkflowStatus {
			break
		}
	}

	// ── Run history ───────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}

	run, err := store.GetRun(ctx, id)
	if err != nil {
		log.Fatalf("get run: %v", err)
	}
	events, err := store.ListEvents(ctx, id)
	if err != nil {
		log.Fatalf("list events: %v", err)
	}
	fmt.Printf("execution %s %s with %d events\n", run.ExecutionID, run.Status, len(events))
}
