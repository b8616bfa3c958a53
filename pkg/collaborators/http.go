// Package collaborators provides HTTP clients for the external services the
// engine delegates to: the rule-evaluation service behind validation steps
// and the sandboxed script runner behind automation steps.
package collaborators

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/docuflow/docuflow/pkg/protocol"
)

const clientTimeout = 60 * time.Second

// HTTPValidator calls a rule-evaluation service over HTTP.
type HTTPValidator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPValidator(baseURL string) *HTTPValidator {
	return &HTTPValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: clientTimeout},
	}
}

func (v *HTTPValidator) RunValidation(ctx context.Context, ruleIDs []string, context map[string]any) ([]protocol.RuleResult, error) {
	var response struct {
		Results []protocol.RuleResult `json:"results"`
	}

	err := postJSON(ctx, v.client, v.baseURL+"/validate", map[string]any{
		"rule_ids": ruleIDs,
		"context":  context,
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("rule service call failed: %w", err)
	}

	return response.Results, nil
}

// HTTPScriptRunner calls a sandboxed script execution service over HTTP.
type HTTPScriptRunner struct {
	baseURL string
	client  *http.Client
}

func NewHTTPScriptRunner(baseURL string) *HTTPScriptRunner {
	return &HTTPScriptRunner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: clientTimeout},
	}
}

func (r *HTTPScriptRunner) RunScript(ctx context.Context, script string, context map[string]any) (map[string]any, error) {
	var response struct {
		Output map[string]any `json:"output"`
	}

	err := postJSON(ctx, r.client, r.baseURL+"/run", map[string]any{
		"script":  script,
		"context": context,
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("script runner call failed: %w", err)
	}

	return response.Output, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
