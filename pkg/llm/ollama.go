package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loomhq/loom/internal/httpclient"
	"github.com/loomhq/loom/pkg/convo"
)

// OllamaProvider talks to an Ollama-format streaming chat endpoint
// (POST {host}/api/chat, NDJSON response body).
type OllamaProvider struct {
	model      string
	baseURL    string
	httpClient *httpclient.Client
	think      bool
	temperature float64
	maxTokens   int
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithTemperature sets the sampling temperature forwarded in requests.
func WithTemperature(t float64) OllamaOption {
	return func(p *OllamaProvider) { p.temperature = t }
}

// WithMaxTokens sets the num_predict cap forwarded in requests.
func WithMaxTokens(n int) OllamaOption {
	return func(p *OllamaProvider) { p.maxTokens = n }
}

// WithThinking forces the "think" request field on or off, overriding
// the model-name heuristic in isThinkingCapableModel.
func WithThinking(enabled bool) OllamaOption {
	return func(p *OllamaProvider) { p.think = enabled }
}

// WithHTTPClient overrides the underlying retrying HTTP client.
func WithHTTPClient(c *httpclient.Client) OllamaOption {
	return func(p *OllamaProvider) { p.httpClient = c }
}

// NewOllamaProvider builds a provider for the given host and model.
// host defaults to http://localhost:11434 if empty.
func NewOllamaProvider(host, model string, opts ...OllamaOption) *OllamaProvider {
	if host == "" {
		host = "http://localhost:11434"
	}
	p := &OllamaProvider{
		model:      model,
		baseURL:    strings.TrimSuffix(host, "/"),
		httpClient: httpclient.New(),
		think:      isThinkingCapableModel(model),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) ModelName() string { return p.model }

type ollamaRequest struct {
	Model      string          `json:"model"`
	Messages   []ollamaMessage `json:"messages"`
	Stream     bool            `json:"stream"`
	Format     any             `json:"format,omitempty"`
	Options    *ollamaOptions  `json:"options,omitempty"`
	Tools      []ollamaTool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
	Think      any             `json:"think,omitempty"`
}

type ollamaMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Thinking   string           `json:"thinking,omitempty"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolName   string           `json:"tool_name,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaToolCall struct {
	Type     string                 `json:"type"`
	Function ollamaToolCallFunction `json:"function"`
}

type ollamaToolCallFunction struct {
	Index     int            `json:"index,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaStreamChunk struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// GenerateStreaming implements Provider.
func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []convo.Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	req := p.buildRequest(messages, tools, nil)
	return p.stream(ctx, req), nil
}

// GenerateStructuredStreaming implements Provider.
func (p *OllamaProvider) GenerateStructuredStreaming(ctx context.Context, messages []convo.Message, tools []ToolDefinition, format *StructuredOutput) (<-chan StreamChunk, error) {
	req := p.buildRequest(messages, tools, format)
	return p.stream(ctx, req), nil
}

func (p *OllamaProvider) stream(ctx context.Context, req ollamaRequest) <-chan StreamChunk {
	out := make(chan StreamChunk, 64)
	go func() {
		defer close(out)
		if err := p.makeStreamingRequest(ctx, req, out); err != nil {
			out <- StreamChunk{Type: ChunkError, Err: err}
		}
	}()
	return out
}

func (p *OllamaProvider) buildRequest(messages []convo.Message, tools []ToolDefinition, format *StructuredOutput) ollamaRequest {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case convo.RoleTool:
			out = append(out, ollamaMessage{
				Role:     "tool",
				Content:  m.Content,
				ToolName: m.ToolName,
			})
		case convo.RoleAssistant:
			om := ollamaMessage{Role: "assistant", Content: m.Content}
			if len(m.ToolCalls) > 0 {
				om.ToolCalls = make([]ollamaToolCall, len(m.ToolCalls))
				for i, tc := range m.ToolCalls {
					args := tc.Parameters
					if args == nil {
						args = map[string]any{}
					}
					om.ToolCalls[i] = ollamaToolCall{
						Type: "function",
						Function: ollamaToolCallFunction{
							Index:     i,
							Name:      tc.Name,
							Arguments: args,
						},
					}
				}
			}
			out = append(out, om)
		case convo.RoleSystem:
			out = append(out, ollamaMessage{Role: "system", Content: m.Content})
		default:
			out = append(out, ollamaMessage{Role: "user", Content: m.Content})
		}
	}

	req := ollamaRequest{Model: p.model, Messages: out, Stream: true}

	if p.temperature > 0 || p.maxTokens > 0 {
		req.Options = &ollamaOptions{Temperature: p.temperature, NumPredict: p.maxTokens}
	}
	if p.think {
		req.Think = true
	}
	if format != nil {
		if format.Schema != nil {
			req.Format = format.Schema
		} else {
			req.Format = "json"
		}
	}
	if len(tools) > 0 {
		req.Tools = convertTools(tools)
		req.ToolChoice = "auto"
	}
	return req
}

func convertTools(tools []ToolDefinition) []ollamaTool {
	out := make([]ollamaTool, len(tools))
	for i, t := range tools {
		out[i] = ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  parametersToJSONSchema(t.Parameters),
			},
		}
	}
	return out
}

// parametersToJSONSchema projects the tool's ordered parameter list
// into the {type:"object", properties:{...}, required:[...]} shape
// Ollama's function-calling catalog expects.
func parametersToJSONSchema(params []ToolParameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]any{
			"type":        jsonSchemaType(p.Kind),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonSchemaType(kind string) string {
	switch kind {
	case "string", "number", "boolean", "array", "object":
		return kind
	default:
		return "string"
	}
}

func (p *OllamaProvider) makeStreamingRequest(ctx context.Context, req ollamaRequest, out chan<- StreamChunk) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			var errBody struct {
				Error string `json:"error"`
			}
			if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
				return fmt.Errorf("llm: ollama error: %s", errBody.Error)
			}
			return fmt.Errorf("llm: ollama request failed with status %d: %s", resp.StatusCode, string(raw))
		}
	}
	if err != nil {
		return fmt.Errorf("llm: streaming request: %w", err)
	}
	if resp == nil {
		return fmt.Errorf("llm: streaming request: no response")
	}

	reader := bufio.NewReader(resp.Body)
	toolCalls := make(map[int]ollamaToolCall)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("llm: read stream: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var chunk ollamaStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return fmt.Errorf("llm: ollama error: %s", chunk.Error)
		}

		if chunk.Message.Content != "" {
			out <- StreamChunk{Type: ChunkText, Text: chunk.Message.Content}
		}
		if chunk.Message.Thinking != "" {
			out <- StreamChunk{Type: ChunkThinking, Text: chunk.Message.Thinking}
		}
		for _, tc := range chunk.Message.ToolCalls {
			idx := tc.Function.Index
			if existing, ok := toolCalls[idx]; ok {
				for k, v := range tc.Function.Arguments {
					existing.Function.Arguments[k] = v
				}
				toolCalls[idx] = existing
				continue
			}
			if tc.Function.Arguments == nil {
				tc.Function.Arguments = map[string]any{}
			}
			toolCalls[idx] = tc
		}

		if chunk.Done {
			for i := 0; i < len(toolCalls); i++ {
				tc, ok := toolCalls[i]
				if !ok {
					continue
				}
				out <- StreamChunk{
					Type: ChunkToolCall,
					ToolCall: &convo.ToolCall{
						ID:         fmt.Sprintf("call_%d_%s", i, tc.Function.Name),
						Name:       tc.Function.Name,
						Parameters: tc.Function.Arguments,
					},
				}
			}
			out <- StreamChunk{Type: ChunkDone, Tokens: chunk.PromptEvalCount + chunk.EvalCount}
			return nil
		}
	}
}

// isThinkingCapableModel mirrors the teacher's heuristic for deciding
// whether to set the "think" request field by default.
func isThinkingCapableModel(model string) bool {
	m := strings.ToLower(model)
	for _, excluded := range []string{"qwen3-coder", "qwen2-coder"} {
		if strings.Contains(m, excluded) {
			return false
		}
	}
	for _, pattern := range []string{"qwen3", "deepseek-r1", "deepseek-v3", "gpt-oss"} {
		if strings.Contains(m, pattern) {
			return true
		}
	}
	return false
}
