package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/metrics"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/telemetry"
)

type formatterImpl struct {
	runner  compose.Runnable[map[string]any, formatterLLMOutput]
	timeout time.Duration
}

type formatterLLMOutput struct {
	Text      string `json:"text"`
	Terminate bool   `json:"terminate"`
}

type formatterPayload struct {
	CustomerID  string `json:"customer_id"`
	Salutation  string `json:"salutation"`
	UserMessage string `json:"user_message"`
	RawAnswer   string `json:"raw_answer"`
}

func newFormatter(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, opts Options) (*formatterImpl, error) {
	runner, err := compileStructuredLLMGraph[formatterLLMOutput](ctx, chatModel, systemPrompt, "formatter.structured_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile formatter graph: %v", contractx.ErrModelInvoke, err)
	}
	return &formatterImpl{runner: runner, timeout: opts.InferenceTimeout}, nil
}

func (f *formatterImpl) Format(ctx context.Context, req contractx.FormatRequest) (contractx.FormatResponse, error) {
	switch req.Decision {
	case contractx.DecisionLiveAgent:
		return contractx.FormatResponse{Text: EscalationText, Terminate: true}, nil
	case contractx.DecisionFinish:
		return contractx.FormatResponse{Text: FarewellText, Terminate: true}, nil
	case contractx.DecisionOutOfScope:
		if req.SuppressOffer {
			return contractx.FormatResponse{Text: OutOfScopeText}, nil
		}
		return contractx.FormatResponse{Text: OutOfScopeText + " " + LiveAgentOffer, OfferPending: true}, nil
	case contractx.DecisionDeclineOffer:
		return contractx.FormatResponse{Text: DeclineText}, nil
	case contractx.DecisionFallback:
		return contractx.FormatResponse{Text: ApologyText}, nil
	case contractx.DecisionAccount, contractx.DecisionCard, contractx.DecisionTransfer:
		return f.formatAnswer(ctx, req), nil
	default:
		return contractx.FormatResponse{}, fmt.Errorf("%w: %q", contractx.ErrUnknownDecision, req.Decision)
	}
}

// formatAnswer rewrites a specialist answer. Inference failures degrade to
// the apology and never end the session.
func (f *formatterImpl) formatAnswer(ctx context.Context, req contractx.FormatRequest) contractx.FormatResponse {
	ctx, span := telemetry.Start(ctx, "formatter.format",
		attribute.String("customer_id", req.CustomerID),
		attribute.String("decision", string(req.Decision)),
	)
	defer span.End()
	logger := log.Ctx(ctx).With().Str("customer_id", req.CustomerID).Logger()

	if ids := foreignCustomerIDs(req.RawAnswer, req.CustomerID, req.UserMessage); len(ids) > 0 {
		metrics.RecordIdentityViolation()
		logger.Warn().Strs("foreign_ids", ids).Msg("specialist answer references another customer")
		return contractx.FormatResponse{Text: IdentityRefusal}
	}
	if strings.TrimSpace(req.RawAnswer) == "" {
		return contractx.FormatResponse{Text: ApologyText}
	}

	salutation := Salutation(req.Profile)
	input, err := json.Marshal(formatterPayload{
		CustomerID:  req.CustomerID,
		Salutation:  salutation,
		UserMessage: req.UserMessage,
		RawAnswer:   req.RawAnswer,
	})
	if err != nil {
		logger.Error().Err(err).Msg("marshal formatter payload")
		return contractx.FormatResponse{Text: ApologyText}
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	out, err := f.runner.Invoke(callCtx, map[string]any{"input": string(input)})
	if err != nil {
		span.RecordError(err)
		metrics.RecordInferenceFailure(string(contractx.AgentTypeFormatter))
		logger.Error().Err(inferenceError(contractx.AgentTypeFormatter, err)).Msg("formatter unavailable")
		return contractx.FormatResponse{Text: ApologyText}
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		text = req.RawAnswer
	}
	if ids := foreignCustomerIDs(text, req.CustomerID, req.UserMessage); len(ids) > 0 {
		metrics.RecordIdentityViolation()
		logger.Warn().Strs("foreign_ids", ids).Msg("formatted answer references another customer")
		return contractx.FormatResponse{Text: IdentityRefusal}
	}

	text = withSalutation(salutation, text)
	if req.Truncated {
		text = appendSentence(text, PartialNotice)
	}
	// A session only ends with the fixed farewell.
	if out.Terminate {
		text = appendSentence(text, FarewellText)
	}
	return contractx.FormatResponse{Text: text, Terminate: out.Terminate}
}

func appendSentence(text, sentence string) string {
	if strings.Contains(text, sentence) {
		return text
	}
	return text + " " + sentence
}
