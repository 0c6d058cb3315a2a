package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/54b3r/supportai-go/internal/rag"
)

// maxErrorBody bounds how much of a failed response is read for the message.
const maxErrorBody = 64 << 10

// postJSON sends in as a JSON POST and decodes a 2xx reply into out. For any
// other status, apiMessage pulls the backend's own error text out of the body
// when it can; the returned error always wraps rag.ErrEmbedding.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any, apiMessage func([]byte) string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w: %w", err, rag.ErrEmbedding)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if msg := apiMessage(raw); msg != "" {
			return fmt.Errorf("HTTP %d: %s: %w", resp.StatusCode, msg, rag.ErrEmbedding)
		}
		return fmt.Errorf("HTTP %d: %w", resp.StatusCode, rag.ErrEmbedding)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w: %w", err, rag.ErrEmbedding)
	}
	return nil
}
