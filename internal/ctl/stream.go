package ctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"inferd/pkg/types"
)

// sseFrame is the union of what the daemon puts on the wire: token
// chunks, a terminal finish chunk, or an error envelope mid-stream.
type sseFrame struct {
	types.StreamChunk
	Error *types.ErrorDetail `json:"error"`
}

// streamGenerate POSTs payload with streaming enabled and prints token
// text to out as it arrives. Returns once the [DONE] sentinel is seen.
func (c *client) streamGenerate(out io.Writer, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	debug("POST %s (stream)", req.URL)

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return apiError(resp.Status, b)
	}

	finish := ""
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}
		var frame sseFrame
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			return fmt.Errorf("bad stream frame %q: %v", data, err)
		}
		if frame.Error != nil {
			fmt.Fprintln(out)
			return fmt.Errorf("%s (%s)", frame.Error.Message, frame.Error.Code)
		}
		for _, choice := range frame.Choices {
			if choice.Text != "" {
				fmt.Fprint(out, choice.Text)
			} else if choice.Delta != nil {
				fmt.Fprint(out, choice.Delta.Content)
			}
			if choice.FinishReason != nil && *choice.FinishReason != "" {
				finish = *choice.FinishReason
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("stream interrupted: %v", err)
	}
	fmt.Fprintln(out)
	if finish != "" {
		debug("finish_reason: %s", finish)
	}
	return nil
}
