package llm

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/ashureev/care-assistant/internal/config"
	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrCompletion wraps every failure to obtain a usable model response.
var ErrCompletion = errors.New("language model call failed")

// Client adapts a Provider to the conversation's message types.
type Client struct {
	provider    Provider
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewClient creates a client that sends every request through provider.
func NewClient(provider Provider, cfg config.LLMConfig) *Client {
	return &Client{
		provider:    provider,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

// Name returns the underlying provider name.
func (c *Client) Name() string {
	return c.provider.Name()
}

// Complete sends the conversation and returns the model's text reply.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	req := c.request(toProviderMessages(messages))
	resp, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// Extract asks the model to fill out, a pointer to a struct, from prompt.
// The struct's JSON schema constrains the model output and validates it.
func (c *Client) Extract(ctx context.Context, prompt string, out any) error {
	t := reflect.TypeOf(out)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("extract target must be a pointer to a struct, got %T", out)
	}
	schema, err := jsonschema.GenerateSchemaForType(reflect.New(t.Elem()).Elem().Interface())
	if err != nil {
		return fmt.Errorf("generate schema for %s: %w", t.Elem().Name(), err)
	}

	req := c.request([]Message{{Role: RoleUser, Content: prompt}})
	req.Schema = schema
	req.SchemaName = strings.ToLower(t.Elem().Name())
	req.Temperature = new(float64)

	resp, err := c.call(ctx, req)
	if err != nil {
		return err
	}
	if err := jsonschema.VerifySchemaAndUnmarshal(*schema, []byte(stripFences(resp.Content)), out); err != nil {
		return fmt.Errorf("%w: decode structured output: %w", ErrCompletion, err)
	}
	return nil
}

func (c *Client) request(messages []Message) CompletionRequest {
	temperature := c.temperature
	return CompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
	}
}

func (c *Client) call(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompletion, c.provider.Name(), err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: %s: empty response", ErrCompletion, c.provider.Name())
	}
	return resp, nil
}

func toProviderMessages(messages []domain.Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, Message{Role: Role(m.Role), Content: m.Content})
	}
	return out
}

// stripFences removes a surrounding markdown code fence some models emit.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
