package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/Chative-Banking-Assistant/agent/agents/orchestrator"
	specialistx "github.com/tanpawarit/Chative-Banking-Assistant/agent/agents/specialist"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/ledger"
	llmx "github.com/tanpawarit/Chative-Banking-Assistant/agent/llm"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/record"
	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/tool"
	configx "github.com/tanpawarit/Chative-Banking-Assistant/pkg/config"
	qstashx "github.com/tanpawarit/Chative-Banking-Assistant/pkg/qstash"
)

// engine owns the orchestrator and every backend it was built from.
type engine struct {
	*orchestrator.Orchestrator
	closers []func() error
}

func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func buildEngine(ctx context.Context) (_ *engine, err error) {
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	engineCfg, err := configx.New[orchestrator.Config]("ENGINE")
	if err != nil {
		return nil, fmt.Errorf("load engine config: %w", err)
	}
	sessionCfg, err := configx.New[statex.Config]("SESSION")
	if err != nil {
		return nil, fmt.Errorf("load session config: %w", err)
	}
	recordCfg, err := configx.New[record.Config]("RECORDS")
	if err != nil {
		return nil, fmt.Errorf("load records config: %w", err)
	}
	ledgerCfg, err := configx.New[ledger.Config]("LEDGER")
	if err != nil {
		return nil, fmt.Errorf("load ledger config: %w", err)
	}
	qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load qstash config: %w", err)
	}

	e := &engine{}
	defer func() {
		if err != nil {
			_ = e.Close()
		}
	}()

	records, closeRecords, err := record.Open(ctx, *recordCfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	e.closers = append(e.closers, closeRecords)

	sessions, closeSessions, err := statex.Open(ctx, *sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	e.closers = append(e.closers, closeSessions)

	publisher, closeLedger, err := ledger.Open(*ledgerCfg)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	e.closers = append(e.closers, closeLedger)

	handoff, err := qstashx.OpenHandoff(*qstashCfg)
	if err != nil {
		return nil, fmt.Errorf("open handoff: %w", err)
	}

	executor := tool.NewExecutor(records,
		tool.WithLedger(publisher),
		tool.WithStepUpThreshold(engineCfg.StepUpThreshold),
	)

	registry, err := specialistx.NewRegistry(ctx, *llmCfg, executor, engineCfg.SpecialistOptions())
	if err != nil {
		return nil, fmt.Errorf("build agents: %w", err)
	}

	o, err := orchestrator.New(sessions, registry, record.NewDirectory(records), handoff, *engineCfg)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	e.Orchestrator = o

	log.Info().
		Str("records", recordCfg.Backend).
		Str("sessions", sessionCfg.Backend).
		Str("model", llmCfg.Model).
		Msg("engine ready")
	return e, nil
}
