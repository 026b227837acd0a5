package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Davincible/byok-router/internal/apierr"
	"github.com/Davincible/byok-router/internal/protocol"
	"github.com/Davincible/byok-router/internal/wire"
)

const (
	getModelsLabel        = "get-models"
	getModelsMaxTimeout   = 12 * time.Second
	getModelsSnippetChars = 300
)

// getModels merges the official model list with the BYOK ids. When the official
// backend cannot be reached the list is built from the BYOK ids alone.
func (g *Gateway) getModels(ctx context.Context, c *call) any {
	byokIDs := protocol.ByokModelIDs(c.cfg)

	token := strings.TrimSpace(c.UpstreamToken)
	if token == "" {
		token = c.cfg.Official.APIToken
	}

	upstream, err := g.fetchOfficialModels(ctx, c.cfg.Official.CompletionURL, token, min(getModelsMaxTimeout, c.timeout))
	if err != nil {
		g.logger.Warn("get-models falling back to local list", "error", err)
		return protocol.LocalModels(byokIDs)
	}

	return protocol.MergeModels(upstream, byokIDs)
}

func (g *Gateway) fetchOfficialModels(ctx context.Context, completionURL, token string, timeout time.Duration) (map[string]any, error) {
	if strings.TrimSpace(completionURL) == "" {
		return nil, &apierr.ConfigurationError{Label: getModelsLabel, Field: "official.completion_url"}
	}

	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	req, err := wire.NewJSONRequest(ctx, wire.JoinURL(completionURL, "get-models"), struct{}{}, headers)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(ctx, req, wire.Options{Timeout: timeout, Label: getModelsLabel})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apierr.UpstreamError{
			Label:  getModelsLabel,
			Status: resp.StatusCode,
			Body:   wire.ReadTextLimit(resp, getModelsSnippetChars),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return nil, &apierr.UpstreamError{Label: getModelsLabel, Message: fmt.Sprintf("response is not a JSON object: %v", err)}
	}
	return out, nil
}
