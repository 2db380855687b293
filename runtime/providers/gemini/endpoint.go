package gemini

import (
	"errors"
	"net/url"
)

// DefaultEndpoint is the Live API bidirectional streaming endpoint.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// ErrMissingAPIKey indicates an empty API key.
var ErrMissingAPIKey = errors.New("api key is required")

// BuildURL appends the API key as the "key" query parameter. An empty
// endpoint means DefaultEndpoint. The result must only be logged through
// logger.RedactURL.
func BuildURL(endpoint, apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
