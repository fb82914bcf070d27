package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukex/blockflow/pkg/protocol"
	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

// Completer performs chat completions for the agent block.
type Completer struct {
	httpClient *http.Client
	baseURL    string
}

func NewCompleter(httpClient *http.Client, baseURL string) *Completer {
	return &Completer{httpClient: httpClient, baseURL: baseURL}
}

// Call sends the configured prompt and returns the model answer.
func (c *Completer) Call(ctx context.Context, req protocol.CallRequest) (protocol.CallResult, error) {
	apiKey, _ := req.Config["apiKey"].(string)
	if apiKey == "" {
		return protocol.CallResult{}, errors.New("missing required field 'apiKey'")
	}

	request, err := buildRequest(req.Config)
	if err != nil {
		return protocol.CallResult{}, err
	}

	resp, err := c.client(apiKey).CreateChatCompletion(ctx, request)
	if err != nil {
		return protocol.CallResult{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return protocol.CallResult{}, errors.New("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content

	var answer any = content

	if request.ResponseFormat != nil {
		var parsed any
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return protocol.CallResult{}, fmt.Errorf("model answer is not JSON: %w", err)
		}

		answer = parsed
	}

	return protocol.CallResult{Success: true, Output: map[string]any{
		"response": answer,
		"model":    resp.Model,
		"tokens": map[string]any{
			"prompt":     resp.Usage.PromptTokens,
			"completion": resp.Usage.CompletionTokens,
			"total":      resp.Usage.TotalTokens,
		},
	}}, nil
}

func (c *Completer) client(apiKey string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		config.BaseURL = c.baseURL
	}

	if c.httpClient != nil {
		config.HTTPClient = c.httpClient
	}

	return openai.NewClientWithConfig(config)
}

func buildRequest(config map[string]any) (openai.ChatCompletionRequest, error) {
	prompt, ok := config["prompt"].(string)
	if !ok || prompt == "" {
		return openai.ChatCompletionRequest{}, errors.New("missing required field 'prompt'")
	}

	if extra, ok := config["context"]; ok && extra != nil {
		encoded, err := json.Marshal(extra)
		if err != nil {
			return openai.ChatCompletionRequest{}, fmt.Errorf("encode context: %w", err)
		}

		prompt += "\n\nContext:\n" + string(encoded)
	}

	request := openai.ChatCompletionRequest{Model: DefaultModel}

	if model, ok := config["model"].(string); ok && model != "" {
		request.Model = model
	}

	if system, ok := config["systemPrompt"].(string); ok && system != "" {
		request.Messages = append(request.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	request.Messages = append(request.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	if temperature, ok := config["temperature"].(float64); ok {
		request.Temperature = float32(temperature)
	}

	if maxTokens, ok := config["maxTokens"].(float64); ok && maxTokens > 0 {
		request.MaxTokens = int(maxTokens)
	}

	if jsonResponse, ok := config["jsonResponse"].(bool); ok && jsonResponse {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return request, nil
}
