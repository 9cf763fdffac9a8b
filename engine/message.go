package engine

import (
	"fmt"

	"github.com/meikuraledutech/flow"
)

// Message is the execution-log line for activating n. Unknown node types
// yield an empty message.
func Message(n flow.Node) string {
	switch n.Type {
	case flow.NodeStart:
		label := n.Data.Label
		if label == "" {
			label = "User"
		}
		return "[Trigger] Workflow started by " + label
	case flow.NodeAction:
		msg := n.Data.Message
		if msg == "" {
			msg = "Default Action"
		}
		return fmt.Sprintf(`[Action] Processing: "%s"`, msg)
	case flow.NodeEnd:
		return "[End] Workflow finished successfully."
	}
	return ""
}
