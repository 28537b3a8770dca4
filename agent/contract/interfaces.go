package contract

import "context"

type Router interface {
	Route(ctx context.Context, req RouterRequest) (Decision, error)
}

type Specialist interface {
	Run(ctx context.Context, req SpecialistRequest) (SpecialistResponse, error)
}

type Formatter interface {
	Format(ctx context.Context, req FormatRequest) (FormatResponse, error)
}

type Registry interface {
	Router() Router
	Specialist(agentType AgentType) (Specialist, bool)
	Formatter() Formatter
}

// ToolExecutor runs one catalogue tool for an already validated customer id.
// Domain outcomes are reported through ToolResult.Code; the error return is
// reserved for infrastructure failures.
type ToolExecutor interface {
	Execute(ctx context.Context, customerID string, req ToolRequest) (ToolResult, error)
}

type Directory interface {
	IsValidCustomer(ctx context.Context, customerID string) (bool, error)
	Profile(ctx context.Context, customerID string) (Profile, bool, error)
}

type Handoff interface {
	RequestLiveAgent(ctx context.Context, req HandoffRequest) error
}
