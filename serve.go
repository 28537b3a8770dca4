package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tanpawarit/Chative-Banking-Assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/metrics"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/speech"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/chatapi"
	configx "github.com/tanpawarit/Chative-Banking-Assistant/pkg/config"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/telemetry"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	httpCfg, err := configx.New[chatapi.Config]("HTTP")
	if err != nil {
		return fmt.Errorf("load http config: %w", err)
	}
	if addr != "" {
		httpCfg.Addr = addr
	}
	traceCfg, err := configx.New[telemetry.Config]("TRACE")
	if err != nil {
		return fmt.Errorf("load trace config: %w", err)
	}
	speechCfg, err := configx.New[speech.Config]("SPEECH")
	if err != nil {
		return fmt.Errorf("load speech config: %w", err)
	}

	shutdownTracing, err := telemetry.Init(ctx, *traceCfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	metrics.Register()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn().Err(err).Msg("closing backends failed")
		}
	}()

	var voice chatapi.Speech
	switch svc, err := speech.New(*speechCfg); {
	case errors.Is(err, speech.ErrDisabled):
		log.Info().Msg("speech disabled: SPEECH_API_KEY is empty")
	case err != nil:
		return fmt.Errorf("build speech service: %w", err)
	default:
		voice = svc
	}

	srv := chatapi.New(eng, voice, *httpCfg, isClientError)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func isClientError(err error) bool {
	return errors.Is(err, orchestrator.ErrInvalidMessage) || errors.Is(err, orchestrator.ErrInvalidCustomer)
}
