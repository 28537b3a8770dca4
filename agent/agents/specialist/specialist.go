package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/metrics"
	toolx "github.com/tanpawarit/Chative-Banking-Assistant/agent/tool"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/telemetry"
)

var errIdentityViolation = errors.New("tool call references another customer")

type specialistImpl struct {
	agentType contractx.AgentType
	runner    compose.Runnable[map[string]any, *schema.Message]
	executor  contractx.ToolExecutor
	opts      Options
}

func newSpecialist(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	executor contractx.ToolExecutor,
	opts Options,
) (*specialistImpl, error) {
	if executor == nil {
		return nil, fmt.Errorf("%w: tool executor is required", contractx.ErrValidation)
	}

	toolModel, err := chatModel.WithTools(toolx.BuildForAgent(agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for specialist=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}
	runner, err := compileSpecialistStepGraph(ctx, toolModel, systemPrompt, "specialist."+string(agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}

	return &specialistImpl{
		agentType: agentType,
		runner:    runner,
		executor:  executor,
		opts:      opts,
	}, nil
}

// Run drives the tool loop until the model answers without tool calls or
// the tool call budget is spent.
func (s *specialistImpl) Run(ctx context.Context, req contractx.SpecialistRequest) (contractx.SpecialistResponse, error) {
	ctx, span := telemetry.Start(ctx, "specialist.run",
		attribute.String("agent", string(s.agentType)),
		attribute.String("customer_id", req.CustomerID),
	)
	defer span.End()

	if strings.TrimSpace(req.CustomerID) == "" {
		return contractx.SpecialistResponse{}, fmt.Errorf("%w: customer id is required", contractx.ErrValidation)
	}

	history := toSchemaMessages(windowed(req.History, s.opts.HistoryWindow))
	var (
		lastText string
		calls    int
	)

	for {
		msg, err := s.step(ctx, req.CustomerID, history)
		if err != nil {
			span.RecordError(err)
			metrics.RecordInferenceFailure(string(s.agentType))
			return contractx.SpecialistResponse{ToolCalls: calls}, inferenceError(s.agentType, err)
		}
		if text := strings.TrimSpace(msg.Content); text != "" {
			lastText = text
		}
		if len(msg.ToolCalls) == 0 {
			if lastText == "" {
				return contractx.SpecialistResponse{ToolCalls: calls},
					inferenceError(s.agentType, fmt.Errorf("%w: empty answer", contractx.ErrSchemaViolation))
			}
			span.SetAttributes(attribute.Int("tool_calls", calls))
			return contractx.SpecialistResponse{Message: lastText, ToolCalls: calls}, nil
		}

		history = append(history, msg)
		for _, call := range msg.ToolCalls {
			if calls >= s.opts.MaxToolCalls {
				metrics.RecordTruncation(string(s.agentType))
				log.Ctx(ctx).Warn().
					Str("agent", string(s.agentType)).
					Str("customer_id", req.CustomerID).
					Int("tool_calls", calls).
					Msg("tool call budget exhausted")
				answer := lastText
				if answer == "" {
					answer = PartialNotice
				}
				return contractx.SpecialistResponse{Message: answer, ToolCalls: calls, Truncated: true}, nil
			}
			calls++

			observation, err := s.invokeTool(ctx, req.CustomerID, call)
			if errors.Is(err, errIdentityViolation) {
				metrics.RecordIdentityViolation()
				log.Ctx(ctx).Warn().
					Str("agent", string(s.agentType)).
					Str("customer_id", req.CustomerID).
					Str("tool", call.Function.Name).
					Msg("identity violation in tool call")
				return contractx.SpecialistResponse{Message: IdentityRefusal, ToolCalls: calls, IdentityViolation: true}, nil
			}
			if err != nil {
				span.RecordError(err)
				return contractx.SpecialistResponse{ToolCalls: calls}, err
			}
			history = append(history, schema.ToolMessage(observation, call.ID))
		}
	}
}

func (s *specialistImpl) step(ctx context.Context, customerID string, history []*schema.Message) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.InferenceTimeout)
	defer cancel()

	msg, err := s.runner.Invoke(ctx, map[string]any{
		"customer_id": customerID,
		"history":     history,
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}
	return msg, nil
}

// invokeTool validates one call and returns the JSON observation fed back to
// the model. The executor is never reached for a disallowed tool or a foreign
// customer id.
func (s *specialistImpl) invokeTool(ctx context.Context, customerID string, call schema.ToolCall) (string, error) {
	name := strings.TrimSpace(call.Function.Name)
	started := time.Now()

	if !toolx.Allowed(s.agentType, name) {
		res := contractx.ToolResult{
			Tool:  name,
			Code:  contractx.ToolInvalidArgument,
			Error: fmt.Sprintf("tool %q is not available to %s", name, s.agentType),
		}
		metrics.RecordToolCall(string(s.agentType), name, string(res.Code), time.Since(started))
		return encodeObservation(res), nil
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			res := contractx.ToolResult{
				Tool:  name,
				Code:  contractx.ToolInvalidArgument,
				Error: "arguments are not a valid JSON object",
			}
			metrics.RecordToolCall(string(s.agentType), name, string(res.Code), time.Since(started))
			return encodeObservation(res), nil
		}
	}

	claimed, present := args[toolx.ArgCustomerID]
	if !present {
		args[toolx.ArgCustomerID] = customerID
	} else if id, _ := claimed.(string); strings.TrimSpace(id) != customerID {
		metrics.RecordToolCall(string(s.agentType), name, string(contractx.ToolIdentity), time.Since(started))
		return "", errIdentityViolation
	}

	ctx, span := telemetry.Start(ctx, "tool."+name, attribute.String("agent", string(s.agentType)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, s.opts.ToolTimeout)
	defer cancel()

	res, err := s.executor.Execute(ctx, customerID, contractx.ToolRequest{Tool: name, Args: args})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("execute tool %s: %w", name, err)
	}
	metrics.RecordToolCall(string(s.agentType), name, string(res.Code), time.Since(started))
	log.Ctx(ctx).Debug().
		Str("agent", string(s.agentType)).
		Str("tool", name).
		Str("code", string(res.Code)).
		Dur("duration", time.Since(started)).
		Msg("tool executed")
	return encodeObservation(res), nil
}

func encodeObservation(res contractx.ToolResult) string {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"code":"invalid_argument","error":"result is not serializable"}`, res.Tool)
	}
	return string(raw)
}
