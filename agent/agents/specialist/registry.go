package specialist

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	llmx "github.com/tanpawarit/Chative-Banking-Assistant/agent/llm"
	promptx "github.com/tanpawarit/Chative-Banking-Assistant/agent/prompt"
)

type registryImpl struct {
	router      contractx.Router
	specialists map[contractx.AgentType]contractx.Specialist
	formatter   contractx.Formatter
}

func (r *registryImpl) Router() contractx.Router {
	return r.router
}

func (r *registryImpl) Specialist(agentType contractx.AgentType) (contractx.Specialist, bool) {
	s, ok := r.specialists[agentType]
	return s, ok
}

func (r *registryImpl) Formatter() contractx.Formatter {
	return r.formatter
}

// Models holds one chat model per agent role.
type Models struct {
	Router    einomodel.ToolCallingChatModel
	Account   einomodel.ToolCallingChatModel
	Card      einomodel.ToolCallingChatModel
	Transfer  einomodel.ToolCallingChatModel
	Formatter einomodel.ToolCallingChatModel
}

func (m Models) forAgent(agentType contractx.AgentType) einomodel.ToolCallingChatModel {
	switch agentType {
	case contractx.AgentTypeRouter:
		return m.Router
	case contractx.AgentTypeAccount:
		return m.Account
	case contractx.AgentTypeCard:
		return m.Card
	case contractx.AgentTypeTransfer:
		return m.Transfer
	case contractx.AgentTypeFormatter:
		return m.Formatter
	default:
		return nil
	}
}

var specialistAgents = []contractx.AgentType{
	contractx.AgentTypeAccount,
	contractx.AgentTypeCard,
	contractx.AgentTypeTransfer,
}

// NewRegistry builds every agent from OpenRouter models configured per role.
func NewRegistry(ctx context.Context, cfg llmx.Config, executor contractx.ToolExecutor, opts Options) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var models Models
	targets := map[contractx.AgentType]*einomodel.ToolCallingChatModel{
		contractx.AgentTypeRouter:    &models.Router,
		contractx.AgentTypeAccount:   &models.Account,
		contractx.AgentTypeCard:      &models.Card,
		contractx.AgentTypeTransfer:  &models.Transfer,
		contractx.AgentTypeFormatter: &models.Formatter,
	}
	for agentType, target := range targets {
		modelCfg := cfg.OpenRouterFor(agentType)
		m, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create %s model: %v", contractx.ErrModelInvoke, agentType, err)
		}
		*target = m
	}

	return NewRegistryWithModels(ctx, models, executor, opts)
}

// NewRegistryWithModels wires agents around already constructed models.
func NewRegistryWithModels(ctx context.Context, models Models, executor contractx.ToolExecutor, opts Options) (contractx.Registry, error) {
	opts = opts.withDefaults()
	prompts := promptx.LoadPromptSet()

	for _, agentType := range append([]contractx.AgentType{contractx.AgentTypeRouter, contractx.AgentTypeFormatter}, specialistAgents...) {
		if models.forAgent(agentType) == nil {
			return nil, fmt.Errorf("%w: model for %s is required", contractx.ErrValidation, agentType)
		}
	}

	routerPrompt, err := prompts.For(contractx.AgentTypeRouter)
	if err != nil {
		return nil, err
	}
	router, err := newRouter(ctx, models.Router, routerPrompt, opts)
	if err != nil {
		return nil, err
	}

	formatterPrompt, err := prompts.For(contractx.AgentTypeFormatter)
	if err != nil {
		return nil, err
	}
	formatter, err := newFormatter(ctx, models.Formatter, formatterPrompt, opts)
	if err != nil {
		return nil, err
	}

	specialists := make(map[contractx.AgentType]contractx.Specialist, len(specialistAgents))
	for _, agentType := range specialistAgents {
		p, err := prompts.For(agentType)
		if err != nil {
			return nil, err
		}
		s, err := newSpecialist(ctx, agentType, models.forAgent(agentType), p, executor, opts)
		if err != nil {
			return nil, err
		}
		specialists[agentType] = s
	}

	return &registryImpl{
		router:      router,
		specialists: specialists,
		formatter:   formatter,
	}, nil
}
