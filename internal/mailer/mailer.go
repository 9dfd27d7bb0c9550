// Package mailer defines the Mailer collaborator interface the
// AccountService calls to deliver verification, password-reset, move and
// deletion emails (spec section 1: "the core calls a Mailer"), plus an HTTP
// implementation grounded directly on the teacher's
// internal/services/mail_service.go HTTPMailService: same template-request
// shape, same raw net/http JSON POST, same [MAIL]-prefixed logging.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Mailer is the external SMTP/transactional-mail collaborator the core
// depends on. The HTTP layer/operator supplies a concrete implementation;
// the core never talks SMTP directly (spec section 1).
type Mailer interface {
	SendVerification(ctx context.Context, email, verifyURL string) error
	SendPasswordReset(ctx context.Context, email, resetURL string) error
	SendEmailMove(ctx context.Context, email, verifyURL string) error
	SendDeletionConfirmation(ctx context.Context, email, confirmURL string) error
}

// templateEmailRequest mirrors the teacher's TemplateEmailRequest shape.
type templateEmailRequest struct {
	Recipient string                 `json:"recipient"`
	Subject   string                 `json:"subject"`
	Template  string                 `json:"template"`
	Variables map[string]interface{} `json:"variables"`
}

type emailResponse struct {
	Message     string `json:"message"`
	ReceptionID string `json:"reception_id"`
}

type mailErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HTTPMailer implements Mailer via HTTP calls to a sibling mail-sending
// service, the same integration shape as the teacher's HTTPMailService.
type HTTPMailer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPMailer constructs an HTTPMailer posting to baseURL with apiKey in
// the Authorization header.
func NewHTTPMailer(baseURL, apiKey string) *HTTPMailer {
	return &HTTPMailer{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Mailer = (*HTTPMailer)(nil)

// SendVerification emails the email-verification link (spec section 4.4
// registration step 6 and resend_verification).
func (m *HTTPMailer) SendVerification(ctx context.Context, email, verifyURL string) error {
	return m.send(ctx, email, "account_verify", "Verify your email", map[string]interface{}{
		"verify_link": verifyURL,
	})
}

// SendPasswordReset emails the password-reset link (spec section 4.4
// start_password_reset).
func (m *HTTPMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	return m.send(ctx, email, "password_reset", "Reset your password", map[string]interface{}{
		"reset_link": resetURL,
	})
}

// SendEmailMove emails the new address's verification link (spec section
// 4.4 start_move).
func (m *HTTPMailer) SendEmailMove(ctx context.Context, email, verifyURL string) error {
	return m.send(ctx, email, "account_move", "Confirm your new email", map[string]interface{}{
		"verify_link": verifyURL,
	})
}

// SendDeletionConfirmation emails the account-deletion confirmation link
// (spec section 4.4 start_account_deletion).
func (m *HTTPMailer) SendDeletionConfirmation(ctx context.Context, email, confirmURL string) error {
	return m.send(ctx, email, "account_delete", "Confirm account deletion", map[string]interface{}{
		"confirm_link": confirmURL,
	})
}

func (m *HTTPMailer) send(ctx context.Context, recipient, template, subject string, variables map[string]interface{}) error {
	req := templateEmailRequest{
		Recipient: recipient,
		Subject:   subject,
		Template:  template,
		Variables: variables,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/email/template", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", m.apiKey)

	log.Printf("[MAIL] sending template email: recipient=%s, template=%s", recipient, template)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		log.Printf("[MAIL] request failed: %v", err)
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		var errResp mailErrorResponse
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr == nil && errResp.Error != "" {
			log.Printf("[MAIL] api error (status %d): %s - %s", resp.StatusCode, errResp.Error, errResp.Message)
			return fmt.Errorf("mail api error: %s", errResp.Error)
		}
		log.Printf("[MAIL] api error (status %d): %s", resp.StatusCode, string(raw))
		return fmt.Errorf("mail api returned status %d", resp.StatusCode)
	}

	var okResp emailResponse
	if err := json.NewDecoder(resp.Body).Decode(&okResp); err != nil {
		log.Printf("[MAIL] failed to decode response: %v", err)
		return fmt.Errorf("decode mail response: %w", err)
	}

	log.Printf("[MAIL] sent: recipient=%s, reception_id=%s", recipient, okResp.ReceptionID)
	return nil
}
