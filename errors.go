package flow

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGraph     = errors.New("flow: invalid graph")
	ErrCycleDetected    = errors.New("flow: cycle detected, graph is not acyclic")
	ErrWorkflowNotFound = errors.New("flow: workflow not found")
	ErrRunNotFound      = errors.New("flow: run not found")
)

// GraphError wraps a graph rejection with detail. errors.Is matches Kind.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

// CycleError reports the nodes left unordered by a topological sort.
func CycleError(ids []string) error {
	return &GraphError{Kind: ErrCycleDetected, Msg: fmt.Sprintf("unordered nodes %v", ids)}
}
