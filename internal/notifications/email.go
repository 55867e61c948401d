package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/cancelmem/cancelmem-backend/pkg/config"
	"github.com/cancelmem/cancelmem-backend/pkg/logger"
)

// Email is one outgoing message.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// EmailSender delivers an email and returns the provider's message id.
type EmailSender interface {
	Send(ctx context.Context, email Email) (string, error)
}

// PermanentError marks a delivery failure that retrying will not fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResendSender posts emails to the Resend HTTP API behind a circuit breaker.
type ResendSender struct {
	client  httpDoer
	baseURL string
	apiKey  string
	from    string
	breaker *gobreaker.CircuitBreaker[string]
}

// ResendParams configures the Resend sender. Client defaults to an
// http.Client with the configured timeout.
type ResendParams struct {
	Config config.EmailConfig
	Client httpDoer
	Logger *logger.Logger
}

func NewResendSender(params ResendParams) (*ResendSender, error) {
	cfg := params.Config
	if strings.TrimSpace(cfg.ResendAPIKey) == "" {
		return nil, errors.New("resend api key required")
	}
	if strings.TrimSpace(cfg.FromAddress) == "" {
		return nil, errors.New("from address required")
	}
	client := params.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	logg := params.Logger
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "resend",
		Timeout: cfg.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "email circuit breaker state changed")
		},
	})
	return &ResendSender{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.ResendAPIKey,
		from:    cfg.FromAddress,
		breaker: breaker,
	}, nil
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

func (s *ResendSender) Send(ctx context.Context, email Email) (string, error) {
	if strings.TrimSpace(email.To) == "" {
		return "", &PermanentError{Err: errors.New("recipient address missing")}
	}
	id, err := s.breaker.Execute(func() (string, error) {
		return s.post(ctx, email)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("email provider unavailable: %w", err)
	}
	return id, err
}

func (s *ResendSender) post(ctx context.Context, email Email) (string, error) {
	body, err := json.Marshal(resendRequest{
		From:    s.from,
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Text,
		HTML:    email.HTML,
	})
	if err != nil {
		return "", &PermanentError{Err: fmt.Errorf("encode email: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", &PermanentError{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resend request: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out resendResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", nil
		}
		return out.ID, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("resend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	default:
		return "", &PermanentError{Err: fmt.Errorf("resend rejected email with %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}
}

