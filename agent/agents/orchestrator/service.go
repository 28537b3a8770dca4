package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	specialistx "github.com/tanpawarit/Chative-Banking-Assistant/agent/agents/specialist"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/metrics"
	nodex "github.com/tanpawarit/Chative-Banking-Assistant/agent/nodes"
	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/keylock"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/telemetry"
)

// InvalidCustomerText is returned for customer ids unknown to the directory.
const InvalidCustomerText = "Müşteri numaranız doğrulanamadı. Lütfen geçerli bir müşteri numarası ile tekrar deneyin."

var (
	ErrInvalidMessage  = nodex.ErrInvalidMessage
	ErrInvalidCustomer = nodex.ErrInvalidCustomer
)

// Config is loaded with the ENGINE prefix.
type Config struct {
	MaxToolCalls     int           `split_words:"true" default:"6"`
	HistoryWindow    int           `split_words:"true" default:"20"`
	InferenceTimeout time.Duration `split_words:"true" default:"30s"`
	ToolTimeout      time.Duration `split_words:"true" default:"5s"`
	PersistTimeout   time.Duration `split_words:"true" default:"5s"`
	HandoffTimeout   time.Duration `split_words:"true" default:"10s"`
	StepUpThreshold  float64       `split_words:"true" default:"10000"`
}

func (c Config) SpecialistOptions() specialistx.Options {
	return specialistx.Options{
		MaxToolCalls:     c.MaxToolCalls,
		HistoryWindow:    c.HistoryWindow,
		InferenceTimeout: c.InferenceTimeout,
		ToolTimeout:      c.ToolTimeout,
	}
}

type Orchestrator struct {
	store     statex.Store
	models    contractx.Registry
	directory contractx.Directory
	handoff   contractx.Handoff
	locks     *keylock.Locker

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	persistTimeout time.Duration
	handoffTimeout time.Duration

	now func() time.Time
}

func New(
	store statex.Store,
	models contractx.Registry,
	directory contractx.Directory,
	handoff contractx.Handoff,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if directory == nil {
		return nil, errors.New("customer directory is required")
	}
	if handoff == nil {
		handoff = noopHandoff{}
	}

	persistTimeout := cfg.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = 5 * time.Second
	}
	handoffTimeout := cfg.HandoffTimeout
	if handoffTimeout <= 0 {
		handoffTimeout = 10 * time.Second
	}

	o := &Orchestrator{
		store:          store,
		models:         models,
		directory:      directory,
		handoff:        handoff,
		locks:          keylock.New(),
		persistTimeout: persistTimeout,
		handoffTimeout: handoffTimeout,
		now:            time.Now,
	}

	graphRunner, err := o.compileHandleTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn processes one inbound message. Turns for the same session key
// are serialized; the error is non-nil only when the turn could not be
// loaded or persisted.
func (o *Orchestrator) HandleTurn(ctx context.Context, customerID, message string, key statex.Key) (string, error) {
	started := time.Now()
	customerID = strings.TrimSpace(customerID)

	ctx, span := telemetry.Start(ctx, "orchestrator.handle_turn",
		attribute.String("customer_id", customerID),
		attribute.String("session", key.String()),
	)
	defer span.End()
	logger := log.Ctx(ctx).With().Str("customer_id", customerID).Str("session", key.String()).Logger()

	valid, err := o.directory.IsValidCustomer(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("validate customer: %w", err)
	}
	if !valid {
		logger.Info().Msg("rejected unknown customer id")
		metrics.RecordTurn("invalid_customer", time.Since(started))
		return InvalidCustomerText, nil
	}

	unlock, err := o.locks.Lock(ctx, key.String())
	if err != nil {
		return "", fmt.Errorf("acquire session lock %s: %w", key, err)
	}
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		CustomerID: customerID,
		Text:       message,
		Key:        key,
	})
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("turn failed")
		return "", err
	}

	if out.Decision == contractx.DecisionLiveAgent {
		o.requestLiveAgent(ctx, customerID, key, out.Transcript)
	}

	span.SetAttributes(
		attribute.String("decision", string(out.Decision)),
		attribute.Bool("terminated", out.Terminated),
	)
	metrics.RecordTurn(string(out.Decision), time.Since(started))
	logger.Info().
		Str("decision", string(out.Decision)).
		Bool("terminated", out.Terminated).
		Dur("duration", time.Since(started)).
		Msg("turn handled")
	return out.Reply, nil
}

// requestLiveAgent never changes the reply; a failed handoff is only logged.
func (o *Orchestrator) requestLiveAgent(ctx context.Context, customerID string, key statex.Key, transcript []contractx.Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.handoffTimeout)
	defer cancel()

	err := o.handoff.RequestLiveAgent(ctx, contractx.HandoffRequest{
		CustomerID: customerID,
		SessionID:  key.String(),
		Transcript: transcript,
		Requested:  o.now().UTC(),
	})
	if err != nil {
		metrics.RecordHandoff("failed")
		log.Ctx(ctx).Error().Err(err).Str("customer_id", customerID).Msg("live agent handoff failed")
		return
	}
	metrics.RecordHandoff("requested")
}

type noopHandoff struct{}

func (noopHandoff) RequestLiveAgent(context.Context, contractx.HandoffRequest) error {
	return nil
}
