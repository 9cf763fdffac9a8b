package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/broadcast"
	"github.com/meikuraledutech/flow/ctxlog"
	"github.com/meikuraledutech/flow/engine"
	"github.com/meikuraledutech/flow/layout"
	"github.com/meikuraledutech/flow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	app    *fiber.App
	hub    *broadcast.Hub
	store  *memory.Store
	engine *engine.Engine
}

func newFixture(t *testing.T, opts engine.Options) *fixture {
	t.Helper()
	logger := ctxlog.Discard()
	hub := broadcast.New(logger)
	store := memory.New()
	eng := engine.New(hub, store, logger, opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(ctx)
		hub.Close()
	})
	app := New(Deps{
		Runner: eng,
		Store:  store,
		Runs:   store,
		Layout: layout.DefaultConfig(),
		Logger: logger,
	})
	return &fixture{app: app, hub: hub, store: store, engine: eng}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func leadGraph() map[string]any {
	return map[string]any{
		"nodes": []flow.Node{
			{ID: "1", Type: flow.NodeStart, Data: flow.NodeData{Label: "New Lead"}},
			{ID: "2", Type: flow.NodeAction, Data: flow.NodeData{Message: "Hello"}},
			{ID: "3", Type: flow.NodeEnd},
		},
		"edges": []flow.Edge{{Source: "1", Target: "2"}, {Source: "2", Target: "3"}},
	}
}

func waitCompleted(t *testing.T, sub *broadcast.Subscription, id string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub.Events():
			if ev.ExecutionID == id && ev.Kind == flow.EventWorkflowStatus {
				return
			}
		case <-timeout:
			t.Fatalf("run %s did not complete", id)
		}
	}
}

type startResponse struct {
	Success     bool   `json:"success"`
	ExecutionID string `json:"executionId"`
	Message     string `json:"message"`
}

func TestBanner(t *testing.T) {
	f := newFixture(t, engine.Options{})
	status, body := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Workflow Execution Engine is Running", string(body))
}

func TestExecute(t *testing.T) {
	f := newFixture(t, engine.Options{StepDelay: time.Millisecond})
	sub := f.hub.Subscribe(broadcast.AllTopics, 0)
	defer sub.Close()

	status, body := f.do(t, http.MethodPost, "/execute", leadGraph())
	require.Equal(t, http.StatusOK, status, string(body))
	res := decode[startResponse](t, body)
	assert.True(t, res.Success)
	assert.Equal(t, "Workflow started", res.Message)
	require.NotEmpty(t, res.ExecutionID)

	waitCompleted(t, sub, res.ExecutionID)

	require.Eventually(t, func() bool {
		status, body := f.do(t, http.MethodGet, "/runs/"+res.ExecutionID, nil)
		return status == http.StatusOK && decode[flow.Run](t, body).Status == flow.RunCompleted
	}, 2*time.Second, 10*time.Millisecond)

	status, body = f.do(t, http.MethodGet, "/runs/"+res.ExecutionID+"/events", nil)
	require.Equal(t, http.StatusOK, status)
	events := decode[[]flow.Event](t, body)
	require.Len(t, events, 10)
	assert.Equal(t, flow.EventNodeStatus, events[0].Kind)
	assert.Equal(t, "1", events[0].NodeID)
	assert.Equal(t, "[Trigger] Workflow started by New Lead", events[1].Message)
	assert.Equal(t, `[Action] Processing: "Hello"`, events[4].Message)
	assert.Equal(t, flow.EventWorkflowStatus, events[9].Kind)
}

func TestExecuteRejections(t *testing.T) {
	f := newFixture(t, engine.Options{StepDelay: time.Millisecond})

	cyclic := map[string]any{
		"nodes": []flow.Node{{ID: "a", Type: flow.NodeStart}, {ID: "b", Type: flow.NodeEnd}},
		"edges": []flow.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "a"}},
		"order": "topological",
	}
	duplicate := map[string]any{
		"nodes": []flow.Node{{ID: "a", Type: flow.NodeStart}, {ID: "a", Type: flow.NodeEnd}},
	}

	tests := []struct {
		name string
		body any
		want int
	}{
		{"duplicate ids", duplicate, http.StatusBadRequest},
		{"unknown order", map[string]any{"nodes": []flow.Node{}, "order": "random"}, http.StatusBadRequest},
		{"cycle under topological order", cyclic, http.StatusUnprocessableEntity},
		{"not an object", "nodes", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := f.do(t, http.MethodPost, "/execute", tt.body)
			assert.Equal(t, tt.want, status, string(body))
			assert.Contains(t, decode[map[string]any](t, body), "error")
		})
	}
}

func TestExecuteTooManyRuns(t *testing.T) {
	f := newFixture(t, engine.Options{StepDelay: time.Hour, MaxConcurrentRuns: 1})

	status, _ := f.do(t, http.MethodPost, "/execute", leadGraph())
	require.Equal(t, http.StatusOK, status)

	status, body := f.do(t, http.MethodPost, "/execute", leadGraph())
	assert.Equal(t, http.StatusServiceUnavailable, status, string(body))
}

func TestCancelRun(t *testing.T) {
	f := newFixture(t, engine.Options{StepDelay: time.Hour})

	status, body := f.do(t, http.MethodPost, "/execute", leadGraph())
	require.Equal(t, http.StatusOK, status)
	id := decode[startResponse](t, body).ExecutionID

	status, _ = f.do(t, http.MethodDelete, "/runs/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	require.Eventually(t, func() bool {
		run, err := f.store.GetRun(context.Background(), id)
		return err == nil && run != nil && run.Status == flow.RunCancelled
	}, 2*time.Second, 10*time.Millisecond)

	status, _ = f.do(t, http.MethodDelete, "/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRunNotFound(t *testing.T) {
	f := newFixture(t, engine.Options{})

	status, _ := f.do(t, http.MethodGet, "/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/runs/missing/events", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLayout(t *testing.T) {
	f := newFixture(t, engine.Options{})

	status, body := f.do(t, http.MethodPost, "/layout", leadGraph())
	require.Equal(t, http.StatusOK, status, string(body))

	res := decode[struct {
		Positions map[string]flow.Position `json:"positions"`
		Nodes     []flow.Node              `json:"nodes"`
	}](t, body)
	assert.Equal(t, flow.Position{X: 280, Y: 50}, res.Positions["1"])
	assert.Equal(t, flow.Position{X: 280, Y: 210}, res.Positions["2"])
	assert.Equal(t, flow.Position{X: 280, Y: 370}, res.Positions["3"])
	require.Len(t, res.Nodes, 3)
	assert.Equal(t, res.Positions["3"], res.Nodes[2].Position)
}

func TestWorkflowLifecycle(t *testing.T) {
	f := newFixture(t, engine.Options{StepDelay: time.Millisecond})
	sub := f.hub.Subscribe(broadcast.AllTopics, 0)
	defer sub.Close()

	wf := leadGraph()
	wf["name"] = "lead intake"
	status, body := f.do(t, http.MethodPost, "/workflows", wf)
	require.Equal(t, http.StatusCreated, status, string(body))
	saved := decode[flow.Workflow](t, body)
	require.NotEmpty(t, saved.ID)
	for _, e := range saved.Edges {
		assert.NotEmpty(t, e.ID)
	}

	status, body = f.do(t, http.MethodGet, "/workflows/"+saved.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lead intake", decode[flow.Workflow](t, body).Name)

	status, body = f.do(t, http.MethodPost, "/workflows/"+saved.ID+"/layout", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	laid := decode[flow.Workflow](t, body)
	assert.Equal(t, float64(370), laid.Nodes[2].Position.Y)

	stored, err := f.store.GetWorkflow(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(370), stored.Nodes[2].Position.Y)

	status, body = f.do(t, http.MethodPost, "/workflows/"+saved.ID+"/execute", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	id := decode[startResponse](t, body).ExecutionID
	waitCompleted(t, sub, id)

	require.Eventually(t, func() bool {
		run, err := f.store.GetRun(context.Background(), id)
		return err == nil && run != nil && run.Status == flow.RunCompleted
	}, 2*time.Second, 10*time.Millisecond)
	run, err := f.store.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, run.WorkflowID)

	status, _ = f.do(t, http.MethodDelete, "/workflows/"+saved.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodGet, "/workflows/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPost, "/workflows/"+saved.ID+"/execute", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSaveWorkflow_DuplicateEdgeIDs(t *testing.T) {
	f := newFixture(t, engine.Options{})

	status, body := f.do(t, http.MethodPost, "/workflows", map[string]any{
		"nodes": []flow.Node{{ID: "a"}, {ID: "b"}},
		"edges": []flow.Edge{{ID: "e", Source: "a", Target: "b"}, {ID: "e", Source: "b", Target: "a"}},
	})
	assert.Equal(t, http.StatusBadRequest, status, string(body))
	assert.Contains(t, decode[map[string]any](t, body)["error"], "duplicate edge id")
}

func TestDeleteNode(t *testing.T) {
	f := newFixture(t, engine.Options{})

	wf := leadGraph()
	wf["id"] = "wf-1"
	status, _ := f.do(t, http.MethodPost, "/workflows", wf)
	require.Equal(t, http.StatusCreated, status)

	status, body := f.do(t, http.MethodDelete, "/node/2", nil)
	require.Equal(t, http.StatusOK, status)
	res := decode[map[string]any](t, body)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "Node 2 deleted", res["message"])

	w, err := f.store.GetWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Len(t, w.Nodes, 2)
	assert.Empty(t, w.Edges)

	status, _ = f.do(t, http.MethodDelete, "/node/2", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestMount_SharesOrigin(t *testing.T) {
	f := newFixture(t, engine.Options{})
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	srv := httptest.NewServer(Mount(f.app, events))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Workflow Execution Engine is Running", string(body))

	resp, err = http.Get(srv.URL + EventsPath + "?EIO=4&transport=polling")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/layout", "application/json", bytes.NewReader([]byte(`{"nodes":[{"id":"a"}]}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
