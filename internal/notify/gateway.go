package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hireflow/interview-core/internal/config"
	"github.com/hireflow/interview-core/internal/core"
)

// Gateway implements core.NotificationGateway against the messaging
// service's HTTP API. The idempotency key is forwarded so the service can
// collapse redelivered sends on its side too.
type Gateway struct {
	client   *http.Client
	baseURL  string
	registry *Registry
	logger   *slog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(cfg config.NotifyConfig, registry *Registry, logger *slog.Logger) *Gateway {
	return &Gateway{
		client:   &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:  cfg.GatewayURL,
		registry: registry,
		logger:   logger,
	}
}

type messageRequest struct {
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	IdempotencyKey string `json:"idempotency_key"`
}

// Send renders the notification's template and posts the message.
func (g *Gateway) Send(ctx context.Context, n core.Notification) error {
	subject, body, err := g.registry.Render(n.Template, n.Context)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(messageRequest{
		Recipient:      n.Recipient,
		Subject:        subject,
		Body:           body,
		IdempotencyKey: n.IdempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", n.IdempotencyKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", n.Template, n.Recipient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d for %s to %s: %s",
			resp.StatusCode, n.Template, n.Recipient, detail)
	}

	g.logger.Info("notification sent",
		"template", n.Template,
		"recipient", n.Recipient,
		"idempotency_key", n.IdempotencyKey,
	)
	return nil
}
