package orchestratornode

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
)

// PersistTurn appends the messages produced in this turn. It runs detached
// from the caller's cancellation so a disconnecting client does not lose a
// completed turn.
func PersistTurn(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	timeout time.Duration,
) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	produced := in.State.Messages[len(in.Session.Messages):]
	turn := statex.NewTurn(in.CustomerID, produced, in.Decision, in.Reply.Terminate, in.Now)
	turn.OfferPending = in.Reply.OfferPending && !in.Reply.Terminate
	if err := turn.Validate(); err != nil {
		return nil, fmt.Errorf("turn validation failed: %w", err)
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := store.Append(persistCtx, in.Key, turn); err != nil {
		return nil, fmt.Errorf("append turn to %s: %w", in.Key, err)
	}

	log.Ctx(ctx).Debug().
		Str("customer_id", in.CustomerID).
		Str("session", in.Key.String()).
		Str("decision", string(in.Decision)).
		Bool("terminated", turn.Terminated).
		Bool("offer_pending", turn.OfferPending).
		Bool("truncated", in.SpecialistResp.Truncated).
		Int("messages", len(produced)).
		Msg("turn persisted")

	in.Turn = turn
	return in, nil
}
