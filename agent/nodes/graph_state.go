package orchestratornode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
)

var (
	ErrInvalidMessage  = errors.New("message is empty")
	ErrInvalidCustomer = errors.New("customer id is empty")
)

type GraphInput struct {
	CustomerID string
	Text       string
	Key        statex.Key
}

type GraphOutput struct {
	Reply      string
	Decision   contractx.Decision
	Terminated bool
	Transcript []contractx.Message
}

// GraphState is the mutable value passed between nodes of one turn.
type GraphState struct {
	Key        statex.Key
	CustomerID string
	Text       string
	Now        time.Time

	Session      *statex.Session
	State        contractx.ConversationState
	Profile      *contractx.Profile
	PrevNext     contractx.Decision
	OfferPending bool

	Decision      contractx.Decision
	SuppressOffer bool

	SpecialistResp contractx.SpecialistResponse
	Reply          contractx.FormatResponse
	Turn           statex.Turn
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return nil, ErrInvalidCustomer
	}
	if err := in.Key.Validate(); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	return &GraphState{
		Key:        in.Key,
		CustomerID: customerID,
		Text:       text,
		Now:        nowFn().UTC(),
	}, nil
}
