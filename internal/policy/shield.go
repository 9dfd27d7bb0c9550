package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/nisfix-tools/authcore/internal/models"
)

const shieldValidateURL = "https://shield.authifier.com/validate"

// ShieldMode discriminates the ShieldPolicy's enablement (spec section 4.3).
type ShieldMode string

const (
	ShieldDisabled ShieldMode = "disabled"
	ShieldEnabled  ShieldMode = "enabled"
)

// ShieldValidationInput is the request body posted to the abuse-detection
// webhook (spec section 4.3; the HTTP-layer equivalent of
// ShieldValidationInput named in spec section 9's request-guard list).
type ShieldValidationInput struct {
	IP      string            `json:"ip,omitempty"`
	Email   string            `json:"email,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	DryRun  bool              `json:"dry_run"`
}

type shieldValidationResult struct {
	Blocked bool     `json:"blocked"`
	Reasons []string `json:"reasons"`
}

// ShieldPolicy validates a request against the remote abuse-scoring service,
// ported from original_source's Shield::validate.
type ShieldPolicy struct {
	Mode   ShieldMode
	APIKey string
	Strict bool
	client *http.Client
}

// NewShieldPolicy constructs a ShieldPolicy.
func NewShieldPolicy(mode ShieldMode, apiKey string, strict bool) *ShieldPolicy {
	return &ShieldPolicy{
		Mode:   mode,
		APIKey: apiKey,
		Strict: strict,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Validate posts input to the shield service. If the service is
// unreachable and Strict is set, fail with InternalError; otherwise permit
// (spec section 4.3).
func (p *ShieldPolicy) Validate(ctx context.Context, input ShieldValidationInput) *models.Error {
	if p.Mode == ShieldDisabled {
		return nil
	}

	body, err := json.Marshal(input)
	if err != nil {
		return models.ErrInternalError
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, shieldValidateURL, bytes.NewReader(body))
	if err != nil {
		return models.ErrInternalError
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if p.Strict {
			return models.ErrInternalError
		}
		return nil
	}
	defer resp.Body.Close()

	var result shieldValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.ErrInternalError
	}

	if result.Blocked {
		return models.ErrBlockedByShield
	}
	return nil
}
