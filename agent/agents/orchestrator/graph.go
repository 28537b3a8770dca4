package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	nodex "github.com/tanpawarit/Chative-Banking-Assistant/agent/nodes"
)

const (
	nodeLoadSession   = "load_session"
	nodeRoute         = "route"
	nodeAccountAgent  = "account_agent"
	nodeCardAgent     = "card_agent"
	nodeTransferAgent = "transfer_agent"
	nodeFormatReply   = "format_reply"
	nodePersistTurn   = "persist_turn"
	nodeFinalizeReply = "finalize_reply"
)

// nextNode maps a decision to its graph edge. Every decision must be listed;
// an unknown value is an error, never a route.
func nextNode(d contractx.Decision) (string, error) {
	switch d {
	case contractx.DecisionAccount:
		return nodeAccountAgent, nil
	case contractx.DecisionCard:
		return nodeCardAgent, nil
	case contractx.DecisionTransfer:
		return nodeTransferAgent, nil
	case contractx.DecisionOutOfScope,
		contractx.DecisionLiveAgent,
		contractx.DecisionFinish,
		contractx.DecisionDeclineOffer,
		contractx.DecisionFallback:
		return nodeFormatReply, nil
	default:
		return "", fmt.Errorf("%w: %q", contractx.ErrUnknownDecision, d)
	}
}

func (o *Orchestrator) compileHandleTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodeLoadSession,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			st, err := nodex.ValidateRequest(in, o.now)
			if err != nil {
				return nil, err
			}
			return nodex.LoadSession(ctx, st, o.store, o.directory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeLoadSession, err)
	}

	if err := graph.AddLambdaNode(nodeRoute,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Route(ctx, in, o.models.Router())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeRoute, err)
	}

	specialists := map[string]contractx.AgentType{
		nodeAccountAgent:  contractx.AgentTypeAccount,
		nodeCardAgent:     contractx.AgentTypeCard,
		nodeTransferAgent: contractx.AgentTypeTransfer,
	}
	for name, agentType := range specialists {
		agentType := agentType
		if err := graph.AddLambdaNode(name,
			compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
				return nodex.RunSpecialist(ctx, in, agentType, o.models)
			}),
		); err != nil {
			return nil, fmt.Errorf("add node %s: %w", name, err)
		}
	}

	if err := graph.AddLambdaNode(nodeFormatReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.FormatReply(ctx, in, o.models.Formatter())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeFormatReply, err)
	}

	if err := graph.AddLambdaNode(nodePersistTurn,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.PersistTurn(ctx, in, o.store, o.persistTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodePersistTurn, err)
	}

	if err := graph.AddLambdaNode(nodeFinalizeReply,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodeFinalizeReply, err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			return nextNode(in.Decision)
		},
		map[string]bool{
			nodeAccountAgent:  true,
			nodeCardAgent:     true,
			nodeTransferAgent: true,
			nodeFormatReply:   true,
		},
	)
	if err := graph.AddBranch(nodeRoute, branch); err != nil {
		return nil, fmt.Errorf("add route branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, nodeLoadSession},
		{nodeLoadSession, nodeRoute},
		{nodeAccountAgent, nodeFormatReply},
		{nodeCardAgent, nodeFormatReply},
		{nodeTransferAgent, nodeFormatReply},
		{nodeFormatReply, nodePersistTurn},
		{nodePersistTurn, nodeFinalizeReply},
		{nodeFinalizeReply, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx,
		compose.WithGraphName("orchestrator.handle_turn"),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return runner, nil
}
