package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

func FormatReply(ctx context.Context, in *GraphState, formatter contractx.Formatter) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	// The specialist already produced the fixed refusal.
	if in.SpecialistResp.IdentityViolation {
		in.Reply = contractx.FormatResponse{Text: in.SpecialistResp.Message}
	} else {
		out, err := formatter.Format(ctx, contractx.FormatRequest{
			CustomerID:    in.CustomerID,
			Profile:       in.Profile,
			UserMessage:   in.Text,
			RawAnswer:     in.SpecialistResp.Message,
			Decision:      in.Decision,
			SuppressOffer: in.SuppressOffer,
			Truncated:     in.SpecialistResp.Truncated,
		})
		if err != nil {
			return nil, err
		}
		in.Reply = out
	}

	in.State.Append(contractx.NewMessage(contractx.RoleAgent, in.Reply.Text, contractx.AuthorFormatter, in.Now))
	in.State.Next = in.Decision
	return in, nil
}
