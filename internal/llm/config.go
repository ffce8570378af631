package llm

import (
	"fmt"
)

// Config holds the configuration for the inference client.
// Works with any OpenAI-compatible chat-completions endpoint (vLLM,
// OpenRouter, OpenAI, ...).
//
// Environment Variables (read by internal/config):
// - LLM_API_URL: API base URL (default: http://localhost:8000/v1)
// - LLM_API_KEY: API key, optional for a local vLLM deployment
// - LLM_MODEL: Model name to use
// - LLM_MAX_TOKENS: Maximum tokens per completion (default: 2048)
// - LLM_TEMPERATURE: Sampling temperature (default: 0.1)
// - LLM_TIMEOUT: Request timeout in seconds (default: 600)
type Config struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for the inference API request.
// The Authorization header is omitted when no API key is configured,
// which is the normal case for a private vLLM deployment.
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Content-Type": "application/json",
	}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	return headers
}
