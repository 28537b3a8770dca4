package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply.Text)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: formatter returned empty message", contractx.ErrValidation)
	}
	return GraphOutput{
		Reply:      reply,
		Decision:   in.Decision,
		Terminated: in.Reply.Terminate,
		Transcript: in.State.History(),
	}, nil
}
