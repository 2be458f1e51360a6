package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/splax/gameportal/internal/domain"
)

// Tokenizer exchanges raw card details for a payment-provider reference.
// Card details must not outlive the call.
type Tokenizer interface {
	Tokenize(ctx context.Context, card domain.CardDetails) (string, error)
}

// LocalTokenizer discards the card and returns a random reference. Development only.
type LocalTokenizer struct{}

func (LocalTokenizer) Tokenize(context.Context, domain.CardDetails) (string, error) {
	return "tok_" + uuid.NewString(), nil
}

// HTTPTokenizer posts card details to a provider endpoint that answers {"token": "..."}.
type HTTPTokenizer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPTokenizer constructs an HTTPTokenizer.
func NewHTTPTokenizer(endpoint, apiKey string, client *http.Client) *HTTPTokenizer {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPTokenizer{endpoint: endpoint, apiKey: apiKey, client: client}
}

type tokenizeRequest struct {
	Number string `json:"number"`
	Month  string `json:"exp_month"`
	CVV    string `json:"cvc"`
}

type tokenizeResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

func (t *HTTPTokenizer) Tokenize(ctx context.Context, card domain.CardDetails) (string, error) {
	body, err := json.Marshal(tokenizeRequest{Number: card.Number, Month: card.Month, CVV: card.CVV})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build tokenize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tokenize: %w", err)
	}
	defer resp.Body.Close()

	var out tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode tokenize response: status %d: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		if resp.StatusCode < 500 {
			msg := out.Error
			if msg == "" {
				msg = "card rejected"
			}
			return "", domain.NewValidationError("card", msg)
		}
		return "", fmt.Errorf("tokenize: provider status %d", resp.StatusCode)
	}
	if out.Token == "" {
		return "", errors.New("tokenize: empty token")
	}
	return out.Token, nil
}
