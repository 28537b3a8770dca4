package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

const (
	NamespaceBanking = "banking"
	customerIDPrefix = "cust:"
)

var (
	ErrInvalidSession = errors.New("session key is empty")
	ErrInvalidTurn    = errors.New("turn is invalid")
)

// Key addresses one durable conversation log.
type Key struct {
	Namespace string `json:"namespace"`
	ID        string `json:"id"`
}

// CustomerKey derives the session key for a customer, giving at most one
// live session per customer in the banking namespace.
func CustomerKey(customerID string) Key {
	return Key{Namespace: NamespaceBanking, ID: customerIDPrefix + strings.TrimSpace(customerID)}
}

func (k Key) String() string {
	return k.Namespace + "/" + k.ID
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.Namespace) == "" || strings.TrimSpace(k.ID) == "" {
		return ErrInvalidSession
	}
	return nil
}

// Turn is one append-only log entry: the messages produced by a single
// inbound message plus the engine markers needed to resume. OfferPending
// marks a turn whose reply ended with the live-agent offer.
type Turn struct {
	ID           string              `json:"id"`
	CustomerID   string              `json:"customer_id"`
	Messages     []contractx.Message `json:"messages"`
	Next         contractx.Decision  `json:"next"`
	Terminated   bool                `json:"terminated,omitempty"`
	OfferPending bool                `json:"offer_pending,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

func NewTurn(customerID string, msgs []contractx.Message, next contractx.Decision, terminated bool, now time.Time) Turn {
	return Turn{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Messages:   append([]contractx.Message(nil), msgs...),
		Next:       next,
		Terminated: terminated,
		CreatedAt:  now.UTC(),
	}
}

func (t Turn) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidTurn)
	}
	if len(t.Messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidTurn)
	}
	if !t.Next.Valid() {
		return fmt.Errorf("%w: next=%q", ErrInvalidTurn, t.Next)
	}
	return nil
}

// Session is the live view of a conversation reduced from its log.
// OfferPending is true only when the last turn offered a live agent.
type Session struct {
	Key          Key                 `json:"key"`
	CustomerID   string              `json:"customer_id,omitempty"`
	Messages     []contractx.Message `json:"messages"`
	Next         contractx.Decision  `json:"next,omitempty"`
	OfferPending bool                `json:"offer_pending,omitempty"`
	Turns        int                 `json:"turns"`
	Generation   int                 `json:"generation"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Reduce folds a log into the current session. A terminated turn closes its
// generation: later turns start from an empty message sequence while the
// earlier entries stay in the log untouched.
func Reduce(key Key, turns []Turn) *Session {
	s := &Session{Key: key}
	for _, t := range turns {
		if s.CustomerID == "" {
			s.CustomerID = t.CustomerID
		}
		if t.Terminated {
			s.Generation++
			s.Messages = nil
			s.Next = ""
			s.OfferPending = false
			s.Turns = 0
			s.UpdatedAt = t.CreatedAt
			continue
		}
		s.Messages = append(s.Messages, t.Messages...)
		s.Next = t.Next
		s.OfferPending = t.OfferPending
		s.Turns++
		s.UpdatedAt = t.CreatedAt
	}
	return s
}

// IsNew reports whether the session has no turns in its current generation.
func (s *Session) IsNew() bool {
	return s == nil || s.Turns == 0
}
