package completion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	cerrors "github.com/chalkboard-ai/chalkboard/internal/errors"
)

// streamChunk is one server-sent event frame of a streamed completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// stream posts the request with stream=true and reads the SSE body,
// invoking onProgress with the accumulated text after every content delta.
// Streamed requests are not retried: once deltas have been delivered the
// caller's view cannot be rolled back.
func (c *Client) stream(ctx context.Context, baseURL, auth string, req chatRequest, onProgress func(string)) (string, error) {
	req.Stream = true

	r := c.http.R().
		SetContext(ctx).
		SetBody(&req).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true)
	c.decorate(r, auth)

	resp, err := r.Post(baseURL + "/chat/completions")
	if err != nil {
		return "", cerrors.NewNetworkError("completion stream", err)
	}
	raw := resp.RawBody()
	defer func() { _ = raw.Close() }()

	if resp.StatusCode() != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(raw, 1<<20))
		return "", cerrors.NewHTTPError(resp.StatusCode(), string(body), "completion stream")
	}

	var full strings.Builder
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Malformed frames are skipped, not fatal.
			skippedFramesTotal.Inc()
			c.log.Debug().Str("frame", truncate(data, 200)).Msg("skipping malformed stream frame")
			continue
		}
		if chunk.Error != nil {
			return full.String(), fmt.Errorf("provider error: %s", chunk.Error.Message)
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			full.WriteString(chunk.Choices[0].Delta.Content)
			onProgress(full.String())
		}
	}
	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("stream read: %w", err)
	}
	return full.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
