package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/template"
)

const DefaultIntegrationTimeout = 30 * time.Second

// IntegrationType values supported by the invoker.
const IntegrationTypeHTTP = "http"

// IntegrationInvoker issues outbound calls for integration nodes. URL, header
// values, and the JSON body support ${path} interpolation against execution
// data. Any HTTP response is a success result carrying the status code;
// transport failures are soft {success:false} results so the walk continues.
type IntegrationInvoker struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewIntegrationInvoker(logger *slog.Logger, client *http.Client, timeout time.Duration) *IntegrationInvoker {
	if client == nil {
		client = &http.Client{}
	}

	if timeout <= 0 {
		timeout = DefaultIntegrationTimeout
	}

	return &IntegrationInvoker{
		client:  client,
		timeout: timeout,
		logger:  logger.With("module", "integration_invoker"),
	}
}

func (i *IntegrationInvoker) Call(ctx context.Context, spec models.IntegrationSpec, data map[string]any) map[string]any {
	if spec.Type != IntegrationTypeHTTP {
		i.logger.WarnContext(ctx, "Unsupported integration type", "type", spec.Type)

		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("Unsupported integration type: %s", spec.Type),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	req, err := i.buildRequest(ctx, spec, data)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}

	resp, err := i.client.Do(req)
	if err != nil {
		i.logger.WarnContext(ctx, "Integration call failed", "url", spec.URL, "error", err)

		return map[string]any{"success": false, "error": err.Error()}
	}

	return i.processResponse(ctx, resp)
}

func (i *IntegrationInvoker) buildRequest(ctx context.Context, spec models.IntegrationSpec, data map[string]any) (*http.Request, error) {
	method := strings.ToUpper(spec.Method)
	if method == "" {
		method = http.MethodGet
	}

	url := template.Interpolate(spec.URL, data)

	var body io.Reader

	if len(spec.Data) > 0 {
		payload, err := json.Marshal(template.InterpolateValue(spec.Data, data))
		if err != nil {
			return nil, fmt.Errorf("failed to encode integration body: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create integration request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, value := range spec.Headers {
		req.Header.Set(key, template.Interpolate(value, data))
	}

	return req, nil
}

func (i *IntegrationInvoker) processResponse(ctx context.Context, resp *http.Response) map[string]any {
	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return map[string]any{"success": false, "error": err.Error()}
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)

		i.logger.DebugContext(ctx, "Integration response is not JSON, keeping raw string")
	}

	return map[string]any{
		"success": true,
		"status":  resp.StatusCode,
		"data":    body,
	}
}
