package prompts

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/docchat/internal/models"
)

// Scratchpad renders a message history as the plain-text transcript the
// routing and reformulation prompts expect.
func Scratchpad(msgs []models.Message) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Kind {
		case models.KindHuman:
			fmt.Fprintf(&b, "\nUser(Human) Asked : %s\n", m.Content)
		case models.KindToolResult:
			fmt.Fprintf(&b, "\nTool Result of %s tool: %s", m.ToolName, m.Content)
		case models.KindAssistant:
			if m.HasToolCalls() {
				// Only the first call of a response is ever executed.
				fmt.Fprintf(&b, "\nTool Called : %s\n", m.ToolCalls[0].Name)
			} else {
				fmt.Fprintf(&b, "\nAssistant(AI) Message : %s\n", m.Content)
			}
		}
	}
	return b.String()
}
