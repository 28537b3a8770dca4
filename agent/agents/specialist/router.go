package specialist

import (
	"context"
	"encoding/json"
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
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/telemetry"
)

type routerImpl struct {
	runner  compose.Runnable[map[string]any, *schema.Message]
	window  int
	timeout time.Duration
}

type routerLLMOutput struct {
	Next string `json:"next"`
}

func newRouter(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, opts Options) (*routerImpl, error) {
	runner, err := compileRouterGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &routerImpl{runner: runner, window: opts.HistoryWindow, timeout: opts.InferenceTimeout}, nil
}

// Route classifies the latest message. Output outside the router enumeration
// maps to out_of_scope; only inference failures are errors.
func (r *routerImpl) Route(ctx context.Context, req contractx.RouterRequest) (contractx.Decision, error) {
	ctx, span := telemetry.Start(ctx, "router.route", attribute.String("customer_id", req.CustomerID))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.runner.Invoke(ctx, map[string]any{
		"history": toSchemaMessages(windowed(req.History, r.window)),
		"options": routerOptions(),
	})
	if err != nil {
		span.RecordError(err)
		metrics.RecordInferenceFailure(string(contractx.AgentTypeRouter))
		return "", inferenceError(contractx.AgentTypeRouter, err)
	}
	if msg == nil {
		return contractx.DecisionOutOfScope, nil
	}

	decision, ok := parseRouterOutput(msg.Content)
	if !ok {
		log.Ctx(ctx).Warn().
			Str("customer_id", req.CustomerID).
			Str("raw", msg.Content).
			Msg("router output outside enumeration")
		decision = contractx.DecisionOutOfScope
	}
	span.SetAttributes(attribute.String("decision", string(decision)))
	return decision, nil
}

func routerOptions() string {
	opts := make([]string, 0, len(contractx.RouterDecisions))
	for _, d := range contractx.RouterDecisions {
		opts = append(opts, string(d))
	}
	return strings.Join(opts, ", ")
}

// parseRouterOutput accepts a JSON object with a "next" key, optionally
// wrapped in a code fence, or a bare decision token.
func parseRouterOutput(raw string) (contractx.Decision, bool) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		var out routerLLMOutput
		if err := json.Unmarshal([]byte(content[start:end+1]), &out); err == nil {
			return contractx.ParseDecision(out.Next)
		}
		return "", false
	}
	return contractx.ParseDecision(content)
}
