// Command watch prints the live events of the workflow server.
//
//	watch -url http://localhost:3001
//	watch -url http://localhost:3001 -execution 0192f1c4-...
//
// With -execution it follows a single run and exits when that run completes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

func main() {
	rawURL := flag.String("url", "http://localhost:3001", "server address")
	executionID := flag.String("execution", "", "follow only this execution id")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	logger := ctxlog.New(*logLevel, "text", os.Stderr).With("url", *rawURL)

	parsed, err := url.Parse(*rawURL)
	if err != nil {
		logger.Error("Invalid URL", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := socket.DefaultOptions()
	if parsed.Path != "" && parsed.Path != "/" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket("/", opts)
	defer io.Disconnect()

	done := make(chan struct{})

	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Connected", "sid", io.Id())
		if *executionID != "" {
			io.Emit("subscribe", *executionID)
		}
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		logger.Warn("Connection error", "error", errs)
	})

	for _, kind := range []flow.EventKind{flow.EventNodeStatus, flow.EventExecutionLog, flow.EventWorkflowStatus} {
		io.On(types.EventName(kind), func(data ...any) {
			if len(data) == 0 {
				return
			}
			line, _ := json.Marshal(data[0])
			fmt.Printf("%-16s %s\n", kind, line)

			if kind == flow.EventWorkflowStatus && *executionID != "" && payloadID(data[0]) == *executionID {
				close(done)
			}
		})
	}

	io.Connect()

	select {
	case <-ctx.Done():
	case <-done:
		logger.Info("Execution finished", "executionId", *executionID)
	}
}

// payloadID extracts executionId from a decoded event payload.
func payloadID(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["executionId"].(string)
	return id
}
