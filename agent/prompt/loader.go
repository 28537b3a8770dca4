package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/account.txt
	accountRaw string

	//go:embed template/card.txt
	cardRaw string

	//go:embed template/transfer.txt
	transferRaw string

	//go:embed template/formatter.txt
	formatterRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router    string
	Account   string
	Card      string
	Transfer  string
	Formatter string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router:    strings.TrimSpace(routerRaw),
		Account:   strings.TrimSpace(accountRaw),
		Card:      strings.TrimSpace(cardRaw),
		Transfer:  strings.TrimSpace(transferRaw),
		Formatter: strings.TrimSpace(formatterRaw),
	}
}

// For returns the system prompt of one agent.
func (p PromptSet) For(agentType contractx.AgentType) (string, error) {
	var out string
	switch agentType {
	case contractx.AgentTypeRouter:
		out = p.Router
	case contractx.AgentTypeAccount:
		out = p.Account
	case contractx.AgentTypeCard:
		out = p.Card
	case contractx.AgentTypeTransfer:
		out = p.Transfer
	case contractx.AgentTypeFormatter:
		out = p.Formatter
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agentType)
	}
	return out, nil
}
