package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// clientSleepFunc is the backoff sleep between retries (injectable for tests)
var clientSleepFunc = time.Sleep

// Client wraps a provider with strict structured-output enforcement:
// every completion is parsed as JSON and validated against a registered
// schema before the caller sees it.
type Client struct {
	provider Provider
	schemas  map[string]*jsonschema.Schema
	config   Config
}

// NewClient builds a structured-output client. Returns nil when no
// provider is configured, which callers treat as "enrichment disabled".
func NewClient(config Config) (*Client, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Client{provider: provider, schemas: schemas, config: config}, nil
}

// NewClientWithProvider builds a client around an existing provider;
// used by tests to inject fakes.
func NewClientWithProvider(provider Provider, config Config) (*Client, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Client{provider: provider, schemas: schemas, config: config}, nil
}

// ProviderName returns the underlying provider's name
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// CompleteJSON runs one structured completion: prompt in, schema-valid
// JSON decoded into out. One retry with backoff covers both transport
// failures and schema-invalid responses.
func (c *Client) CompleteJSON(ctx context.Context, schemaName, system, prompt string, out interface{}) error {
	schema, ok := c.schemas[schemaName]
	if !ok {
		return fmt.Errorf("unknown output schema: %s", schemaName)
	}

	req := CompleteRequest{
		System:    system,
		Prompt:    prompt,
		MaxTokens: c.config.MaxTokens,
		ForceJSON: true,
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			clientSleepFunc(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		resp, err := c.provider.Complete(ctx, req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		raw := stripFences(resp.Text)

		var generic interface{}
		if err := json.Unmarshal([]byte(raw), &generic); err != nil {
			lastErr = fmt.Errorf("response is not JSON: %w", err)
			continue
		}
		if err := schema.Validate(generic); err != nil {
			lastErr = fmt.Errorf("response failed %s schema: %w", schemaName, err)
			continue
		}
		if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = fmt.Errorf("decode response: %w", err)
			continue
		}
		return nil
	}
	return lastErr
}

// stripFences removes a markdown code fence wrapper if the model added one
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
