package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wolfman30/dentalcrm/pkg/logging"
)

type gatewayRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Type      string   `json:"type"`
	Content   string   `json:"content"`
	ImageRefs []string `json:"imageRefs,omitempty"`
}

type gatewayResponse struct {
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// HTTPGateway posts messages to a carrier relay speaking a small JSON protocol:
// POST {baseURL}/messages returns {"messageId": "..."} or {"error": "..."}.
// Sends are not retried.
type HTTPGateway struct {
	client *resty.Client
	logger *logging.Logger
}

func NewHTTPGateway(baseURL, token string, timeout time.Duration, logger *logging.Logger) *HTTPGateway {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &HTTPGateway{client: client, logger: logger}
}

func (g *HTTPGateway) Send(ctx context.Context, msg Outbound) (string, error) {
	var out gatewayResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{
			From:      msg.From,
			To:        msg.To,
			Type:      string(msg.MessageType),
			Content:   msg.Content,
			ImageRefs: msg.ImageRefs,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/messages")
	if err != nil {
		return "", fmt.Errorf("messaging: gateway request: %w", err)
	}
	if resp.IsError() {
		reason := out.Error
		if reason == "" {
			reason = resp.Status()
		}
		g.logger.Warn("gateway rejected message", "status", resp.StatusCode(), "reason", reason, "to", msg.To)
		return "", fmt.Errorf("messaging: gateway rejected message: %s", reason)
	}
	return out.MessageID, nil
}
