package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
)

// LoadSession reduces the stored log into the turn's conversation state and
// appends the inbound user message to it.
func LoadSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
	directory contractx.Directory,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	session, err := store.Load(ctx, in.Key)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", in.Key, err)
	}
	if session.CustomerID != "" && session.CustomerID != in.CustomerID {
		return nil, fmt.Errorf("%w: session %s belongs to another customer", contractx.ErrIdentity, in.Key)
	}

	profile, ok, err := directory.Profile(ctx, in.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if ok {
		in.Profile = &profile
	}

	in.Session = session
	in.PrevNext = session.Next
	in.OfferPending = session.OfferPending
	in.State = contractx.ConversationState{
		CustomerID: in.CustomerID,
		Messages:   append([]contractx.Message(nil), session.Messages...),
		Next:       session.Next,
	}
	in.State.Append(contractx.NewMessage(contractx.RoleUser, in.Text, "", in.Now))
	return in, nil
}
