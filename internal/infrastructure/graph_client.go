package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TransportError wraps failures talking to the provider's API. Retryable
// marks timeouts and network-level errors, as opposed to definitive
// rejections (bad credentials, 4xx).
type TransportError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("graph api %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transport failure worth retrying.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable
}

// GraphClient talks to the WhatsApp Cloud (Graph) API. Every call carries
// the per-tenant access token; the client itself holds no credentials.
type GraphClient struct {
	baseURL string
	http    *http.Client
}

func NewGraphClient(baseURL string, timeout time.Duration) *GraphClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GraphClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// VerifyCredentials checks that a tenant's access token can read its own
// phone-number object. Used at startup and by settings validation.
func (c *GraphClient) VerifyCredentials(ctx context.Context, phoneNumberID, accessToken string) error {
	url := fmt.Sprintf("%s/%s?fields=id", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build credentials request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: "verify credentials", Err: err, Retryable: true}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			Op:  "verify credentials",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
			// 5xx from the provider is transient; auth errors are not.
			Retryable: resp.StatusCode >= 500,
		}
	}
	return nil
}

type sendTextRequest struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type sendTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a plain text message and returns the provider message
// id, which later delivery receipts refer to.
func (c *GraphClient) SendText(ctx context.Context, phoneNumberID, accessToken, to, body string) (string, error) {
	payload := sendTextRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = body

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{Op: "send text", Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		io.Copy(io.Discard, resp.Body)
		return "", &TransportError{
			Op:        "send text",
			Err:       fmt.Errorf("unexpected status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
		}
	}

	var out sendTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(out.Messages) == 0 {
		return "", nil
	}
	return out.Messages[0].ID, nil
}
