package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPExecutor submits transfer instructions to a settlement provider over
// HTTP. The release ID doubles as the idempotency key so retries after an
// ambiguous failure cannot double-pay.
type HTTPExecutor struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPExecutor constructs an executor with sane client defaults.
func NewHTTPExecutor(baseURL, apiKey string) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type transferRequest struct {
	EscrowID  string `json:"escrow_id"`
	ReleaseID string `json:"release_id"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (e *HTTPExecutor) Execute(ctx context.Context, instruction Instruction) error {
	payload, err := json.Marshal(transferRequest{
		EscrowID:  instruction.EscrowID.String(),
		ReleaseID: instruction.ReleaseID.String(),
		Amount:    instruction.Amount.String(),
		Recipient: instruction.Recipient,
	})
	if err != nil {
		return fmt.Errorf("marshal transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/transfers", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", instruction.ReleaseID.String())
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute transfer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("settlement provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
