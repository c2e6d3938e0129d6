package ark

import (
	"context"
	"errors"
	"fmt"
	"io"

	"docchat-be/pkg/llm"

	arkmodel "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Provider adapts an eino chat model (Volcengine Ark) to llm.LLMProvider.
type Provider struct {
	chatModel model.BaseChatModel
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(ctx context.Context, apiKey, baseURL, modelName string) (*Provider, error) {
	cfg := &arkmodel.ChatModelConfig{
		APIKey: apiKey,
		Model:  modelName,
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cm, err := arkmodel.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	return &Provider{chatModel: cm}, nil
}

// NewFromModel wraps an existing eino model.
func NewFromModel(cm model.BaseChatModel) *Provider {
	return &Provider{chatModel: cm}
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	msg, err := p.chatModel.Generate(ctx, toSchema(history), toModelOptions(options)...)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (llm.Stream, error) {
	sr, err := p.chatModel.Stream(ctx, toSchema(history), toModelOptions(options)...)
	if err != nil {
		return nil, err
	}
	return &stream{reader: sr}, nil
}

type stream struct {
	reader *schema.StreamReader[*schema.Message]
}

func (s *stream) Recv() (llm.Chunk, error) {
	msg, err := s.reader.Recv()
	if errors.Is(err, io.EOF) {
		return llm.Chunk{}, io.EOF
	}
	if err != nil {
		return llm.Chunk{}, err
	}
	chunk := llm.Chunk{Content: msg.Content}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		chunk.Usage = &llm.Usage{
			PromptTokens:     msg.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: msg.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return chunk, nil
}

func (s *stream) Close() error {
	s.reader.Close()
	return nil
}

func toSchema(history []llm.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		case llm.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

func toModelOptions(options []llm.Option) []model.Option {
	opts := llm.Apply(options...)
	out := []model.Option{model.WithTemperature(float32(opts.Temperature))}
	if opts.MaxTokens > 0 {
		out = append(out, model.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Model != "" {
		out = append(out, model.WithModel(opts.Model))
	}
	return out
}
