package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

// RunSpecialist hands the turn to the specialist chosen by the router. An
// inference failure inside the specialist becomes the fallback decision;
// any other error is fatal to the turn.
func RunSpecialist(
	ctx context.Context,
	in *GraphState,
	agentType contractx.AgentType,
	models contractx.Registry,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	specialist, ok := models.Specialist(agentType)
	if !ok {
		return nil, fmt.Errorf("%w: no specialist for %s", contractx.ErrUnknownDecision, agentType)
	}

	resp, err := specialist.Run(ctx, contractx.SpecialistRequest{
		CustomerID: in.CustomerID,
		History:    in.State.History(),
	})
	if err != nil {
		if !errors.Is(err, contractx.ErrInferenceUnavailable) {
			return nil, err
		}
		log.Ctx(ctx).Warn().
			Err(err).
			Str("customer_id", in.CustomerID).
			Str("agent", string(agentType)).
			Msg("specialist unavailable")
		in.Decision = contractx.DecisionFallback
		return in, nil
	}

	in.SpecialistResp = resp
	if resp.Truncated {
		log.Ctx(ctx).Warn().
			Str("customer_id", in.CustomerID).
			Str("agent", string(agentType)).
			Int("tool_calls", resp.ToolCalls).
			Msg("specialist answer is partial")
	}
	if resp.Message != "" {
		in.State.Append(contractx.NewMessage(contractx.RoleAgent, resp.Message, string(in.Decision), in.Now))
	}
	return in, nil
}
