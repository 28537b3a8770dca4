package qstash

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

// Handoff forwards live-agent requests to the contact-centre queue.
type Handoff struct {
	client      *Client
	destination string
}

var _ contractx.Handoff = (*Handoff)(nil)

func NewHandoff(client *Client, destination string) (*Handoff, error) {
	if client == nil {
		return nil, errors.New("qstash client is required")
	}
	if strings.TrimSpace(destination) == "" {
		return nil, errors.New("handoff destination is required")
	}
	return &Handoff{client: client, destination: strings.TrimSpace(destination)}, nil
}

func (h *Handoff) RequestLiveAgent(ctx context.Context, req contractx.HandoffRequest) error {
	resp, err := h.client.Publish(ctx, h.destination, req, req.SessionID+"@"+req.Requested.UTC().Format("20060102T150405"))
	if err != nil {
		return err
	}
	log.Info().
		Str("customer_id", req.CustomerID).
		Str("session", req.SessionID).
		Str("message_id", resp.MessageID).
		Msg("live agent handoff published")
	return nil
}

// NoopHandoff is used when no handoff destination is configured.
type NoopHandoff struct{}

func (NoopHandoff) RequestLiveAgent(ctx context.Context, req contractx.HandoffRequest) error {
	log.Ctx(ctx).Info().Str("customer_id", req.CustomerID).Msg("live agent handoff requested, no destination configured")
	return nil
}

// OpenHandoff builds the handoff port from cfg.
func OpenHandoff(cfg Config) (contractx.Handoff, error) {
	if strings.TrimSpace(cfg.HandoffDestination) == "" || strings.TrimSpace(cfg.Token) == "" {
		return NoopHandoff{}, nil
	}
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewHandoff(client, cfg.HandoffDestination)
}
