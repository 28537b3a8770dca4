package contract

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AgentType string

const (
	AgentTypeRouter    AgentType = "router"
	AgentTypeAccount   AgentType = "account"
	AgentTypeCard      AgentType = "card"
	AgentTypeTransfer  AgentType = "transfer"
	AgentTypeFormatter AgentType = "formatter"
)

// Decision is the closed set of routing outcomes. The router may only choose
// the values reported by RouterChoosable; DecisionDeclineOffer and
// DecisionFallback are produced by the engine itself.
type Decision string

const (
	DecisionAccount      Decision = "account_agent"
	DecisionCard         Decision = "card_agent"
	DecisionTransfer     Decision = "transfer_agent"
	DecisionOutOfScope   Decision = "out_of_scope"
	DecisionLiveAgent    Decision = "live_agent"
	DecisionFinish       Decision = "finish"
	DecisionDeclineOffer Decision = "decline_offer"
	DecisionFallback     Decision = "fallback"
)

// RouterDecisions lists the enumeration offered to the router, in prompt order.
var RouterDecisions = []Decision{
	DecisionAccount,
	DecisionCard,
	DecisionTransfer,
	DecisionOutOfScope,
	DecisionLiveAgent,
	DecisionFinish,
}

func (d Decision) Valid() bool {
	switch d {
	case DecisionAccount, DecisionCard, DecisionTransfer,
		DecisionOutOfScope, DecisionLiveAgent, DecisionFinish,
		DecisionDeclineOffer, DecisionFallback:
		return true
	default:
		return false
	}
}

func (d Decision) RouterChoosable() bool {
	for _, c := range RouterDecisions {
		if c == d {
			return true
		}
	}
	return false
}

// Specialist reports which specialist handles d, if any.
func (d Decision) Specialist() (AgentType, bool) {
	switch d {
	case DecisionAccount:
		return AgentTypeAccount, true
	case DecisionCard:
		return AgentTypeCard, true
	case DecisionTransfer:
		return AgentTypeTransfer, true
	default:
		return "", false
	}
}

// Terminal reports whether a decision ends the session regardless of content.
func (d Decision) Terminal() bool {
	return d == DecisionLiveAgent || d == DecisionFinish
}

// ParseDecision maps raw router output to a router-choosable decision.
func ParseDecision(raw string) (Decision, bool) {
	d := Decision(strings.ToLower(strings.Trim(strings.TrimSpace(raw), "`\"'.")))
	if !d.RouterChoosable() {
		return "", false
	}
	return d, true
}

type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

const AuthorFormatter = "formatter"

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewMessage(role Role, content, author string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Author:    author,
		CreatedAt: now.UTC(),
	}
}

// ConversationState is owned by the graph executor for the duration of a turn.
type ConversationState struct {
	CustomerID string    `json:"customer_id"`
	Messages   []Message `json:"messages"`
	Next       Decision  `json:"next,omitempty"`
}

// History returns a copy of the messages so callers cannot rewrite entries
// written by other agents.
func (c *ConversationState) History() []Message {
	if c == nil {
		return nil
	}
	return append([]Message(nil), c.Messages...)
}

func (c *ConversationState) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

type Profile struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname,omitempty"`
	Gender     string `json:"gender,omitempty"`
}

type RouterRequest struct {
	CustomerID string    `json:"customer_id"`
	History    []Message `json:"history"`
}

type SpecialistRequest struct {
	CustomerID string    `json:"customer_id"`
	History    []Message `json:"history"`
}

type SpecialistResponse struct {
	Message           string `json:"message"`
	ToolCalls         int    `json:"tool_calls"`
	Truncated         bool   `json:"truncated,omitempty"`
	IdentityViolation bool   `json:"identity_violation,omitempty"`
}

type FormatRequest struct {
	CustomerID    string   `json:"customer_id"`
	Profile       *Profile `json:"profile,omitempty"`
	UserMessage   string   `json:"user_message"`
	RawAnswer     string   `json:"raw_answer,omitempty"`
	Decision      Decision `json:"decision"`
	SuppressOffer bool     `json:"suppress_offer,omitempty"`
	Truncated     bool     `json:"truncated,omitempty"`
}

// FormatResponse is the customer-facing reply. OfferPending is set only when
// the text ends with the live-agent offer and a yes/no answer is expected.
type FormatResponse struct {
	Text         string `json:"text"`
	Terminate    bool   `json:"terminate"`
	OfferPending bool   `json:"offer_pending,omitempty"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolCode string

const (
	ToolOK              ToolCode = "ok"
	ToolNotFound        ToolCode = "not_found"
	ToolPolicy          ToolCode = "policy"
	ToolIdentity        ToolCode = "identity"
	ToolInvalidArgument ToolCode = "invalid_argument"
)

type ToolResult struct {
	Tool   string   `json:"tool"`
	Code   ToolCode `json:"code"`
	Result any      `json:"result,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type HandoffRequest struct {
	CustomerID string    `json:"customer_id"`
	SessionID  string    `json:"session_id"`
	Transcript []Message `json:"transcript"`
	Requested  time.Time `json:"requested_at"`
}
