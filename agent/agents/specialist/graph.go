package specialist

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

const (
	defaultMaxToolCalls     = 6
	defaultHistoryWindow    = 20
	defaultInferenceTimeout = 30 * time.Second
	defaultToolTimeout      = 5 * time.Second
)

// Options bounds every agent built by the registry.
type Options struct {
	MaxToolCalls     int
	HistoryWindow    int
	InferenceTimeout time.Duration
	ToolTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxToolCalls <= 0 {
		o.MaxToolCalls = defaultMaxToolCalls
	}
	if o.HistoryWindow <= 0 {
		o.HistoryWindow = defaultHistoryWindow
	}
	if o.InferenceTimeout <= 0 {
		o.InferenceTimeout = defaultInferenceTimeout
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = defaultToolTimeout
	}
	return o
}

func compileRouterGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", false),
		schema.SystemMessage("Seçenekler: {options}"),
	)
	runner, err := compileTemplateModelGraph(ctx, template, chatModel, "router.model_graph")
	if err != nil {
		return nil, fmt.Errorf("compile router graph: %w", err)
	}
	return runner, nil
}

func compileSpecialistStepGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.SystemMessage("Oturumdaki müşteri numarası: {customer_id}"),
		schema.MessagesPlaceholder("history", false),
	)
	runner, err := compileTemplateModelGraph(ctx, template, chatModel, graphName)
	if err != nil {
		return nil, fmt.Errorf("compile specialist step graph: %w", err)
	}
	return runner, nil
}

func compileTemplateModelGraph(
	ctx context.Context,
	template einoprompt.ChatTemplate,
	chatModel einomodel.BaseChatModel,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}
	return graph.Compile(ctx, compose.WithGraphName(graphName))
}

func compileStructuredLLMGraph[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, T], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	parser := schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
		ParseFrom: schema.MessageParseFromContent,
	})

	graph := compose.NewGraph[map[string]any, T]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add structured prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add structured model node: %w", err)
	}
	if err := graph.AddLambdaNode("parse_json", compose.MessageParser(parser)); err != nil {
		return nil, fmt.Errorf("add structured parser node: %w", err)
	}

	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add structured edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add structured edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", "parse_json"); err != nil {
		return nil, fmt.Errorf("add structured edge model->parse: %w", err)
	}
	if err := graph.AddEdge("parse_json", compose.END); err != nil {
		return nil, fmt.Errorf("add structured edge parse->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile structured graph: %w", err)
	}
	return runner, nil
}

// windowed keeps the last n messages.
func windowed(msgs []contractx.Message, n int) []contractx.Message {
	if n > 0 && len(msgs) > n {
		return msgs[len(msgs)-n:]
	}
	return msgs
}

func toSchemaMessages(msgs []contractx.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case contractx.RoleUser:
			out = append(out, schema.UserMessage(content))
		case contractx.RoleAgent:
			out = append(out, schema.AssistantMessage(content, nil))
		case contractx.RoleSystem:
			out = append(out, schema.SystemMessage(content))
		}
	}
	return out
}

func inferenceError(agent contractx.AgentType, err error) error {
	return fmt.Errorf("%w: %w: agent=%s: %v", contractx.ErrInferenceUnavailable, contractx.ErrModelInvoke, agent, err)
}
