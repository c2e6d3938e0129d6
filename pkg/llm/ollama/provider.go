package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docchat-be/pkg/llm"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

// Ensure OllamaProvider implements LLMProvider
var _ llm.LLMProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string) *OllamaProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		// no client timeout: streams are bounded by the caller's context
		Client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	stream, err := o.ChatStream(ctx, history, opts...)
	if err != nil {
		return "", err
	}
	content, _, err := llm.Collect(stream)
	return content, err
}

func (o *OllamaProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	// Reuse Chat for simplicity as most new LLMs are chat-optimized
	return o.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (o *OllamaProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (llm.Stream, error) {
	options := llm.Apply(opts...)

	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		role := msg.Role
		if role == "model" {
			role = llm.RoleAssistant
		}
		ollamaMessages[i] = ollamaMessage{Role: role, Content: msg.Content}
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	reqPayload := ollamaChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
		},
	}
	if options.MaxTokens > 0 {
		reqPayload.Options.NumPredict = options.MaxTokens
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, llm.NewProviderError("ollama", resp, body)
	}

	return &ndjsonStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

// ndjsonStream reads one JSON object per line until the done marker.
type ndjsonStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

func (s *ndjsonStream) Recv() (llm.Chunk, error) {
	for {
		if s.done {
			return llm.Chunk{}, io.EOF
		}
		line, err := s.reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) == 0 {
			if err == io.EOF {
				return llm.Chunk{}, io.ErrUnexpectedEOF
			}
			if err != nil {
				return llm.Chunk{}, fmt.Errorf("read stream: %w", err)
			}
			continue
		}

		var part ollamaChatResponse
		if jsonErr := json.Unmarshal(line, &part); jsonErr != nil {
			return llm.Chunk{}, fmt.Errorf("unmarshal stream chunk: %w", jsonErr)
		}
		if part.Error != "" {
			return llm.Chunk{}, fmt.Errorf("ollama stream error: %s", part.Error)
		}

		chunk := llm.Chunk{Content: part.Message.Content}
		if part.Done {
			s.done = true
			chunk.Usage = &llm.Usage{
				PromptTokens:     part.PromptEvalCount,
				CompletionTokens: part.EvalCount,
			}
		}
		return chunk, nil
	}
}

func (s *ndjsonStream) Close() error {
	return s.body.Close()
}
