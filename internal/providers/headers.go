package providers

import "net/http"

// AnthropicVersion is sent with every Anthropic request.
const AnthropicVersion = "2023-06-01"

// Header maps returned here are applied after the JSON content type, so extra
// headers may replace it while auth headers always win over extra headers.

func openAIAuthHeaders(apiKey string, extra map[string]string) map[string]string {
	headers := canonicalHeaders(extra)
	headers["Authorization"] = "Bearer " + apiKey
	return headers
}

func anthropicAuthHeaders(apiKey string, extra map[string]string) map[string]string {
	headers := canonicalHeaders(extra)
	headers["X-Api-Key"] = apiKey
	headers["Anthropic-Version"] = AnthropicVersion
	return headers
}

// canonicalHeaders copies extra with canonical keys so "authorization" and
// "Authorization" collapse into one entry.
func canonicalHeaders(extra map[string]string) map[string]string {
	headers := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		headers[http.CanonicalHeaderKey(k)] = v
	}
	return headers
}
