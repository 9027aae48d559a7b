package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phishquest/phishquest-api/internal/models"
)

// Verifier scores a client-supplied challenge token for human-likelihood
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// HTTPVerifier verifies tokens against a reCAPTCHA-compatible siteverify endpoint
type HTTPVerifier struct {
	client         *http.Client
	verifyURL      string
	secret         string
	scoreThreshold float64
	logger         *slog.Logger
}

// NewHTTPVerifier creates a verifier against the given siteverify endpoint
func NewHTTPVerifier(verifyURL, secret string, scoreThreshold float64, logger *slog.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		client:         &http.Client{Timeout: 10 * time.Second},
		verifyURL:      verifyURL,
		secret:         secret,
		scoreThreshold: scoreThreshold,
		logger:         logger,
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify submits the token for scoring. Returns ErrCaptchaFailed for absent,
// unverifiable, or low-scored tokens; upstream transport failures surface as
// wrapped errors so handlers can distinguish a broken oracle from a bot.
func (v *HTTPVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	if strings.TrimSpace(token) == "" {
		return models.ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha service returned status %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode captcha response: %w", err)
	}

	if !result.Success {
		v.logger.Info("captcha token rejected", slog.Any("error_codes", result.ErrorCodes))
		return models.ErrCaptchaFailed
	}

	if result.Score < v.scoreThreshold {
		v.logger.Info("captcha score below threshold",
			slog.Float64("score", result.Score),
			slog.Float64("threshold", v.scoreThreshold))
		return models.ErrCaptchaFailed
	}

	return nil
}

// DisabledVerifier accepts every token. Used when captcha is turned off
// (local development, automated tests).
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	return nil
}
