package completion

import (
	"context"
	"fmt"
	"strings"

	"github.com/chalkboard-ai/chalkboard/internal/model"
)

// summaryPrompt instructs the model to answer with a bare title.
const summaryPrompt = "You generate titles for conversations. Given a conversation, return a three word title and nothing else."

// Summarize produces a short title for the conversation. It always runs on
// the fixed summary model over the hosted backend, independent of the
// conversation's own model, and flattens the log into a single user message.
func (c *Client) Summarize(ctx context.Context, msgs []model.Message) (string, error) {
	var b strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&b, "%s: %s\n", m.Sender.Role(), m.Text)
	}

	flat := []model.Message{{Text: b.String(), Sender: model.SenderUser}}
	title, err := c.Complete(ctx, model.SummaryModelID, flat, summaryPrompt, nil, model.BackendOpenRouter)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(title), `"`), nil
}
