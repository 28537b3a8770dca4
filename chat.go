package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	statex "github.com/tanpawarit/Chative-Banking-Assistant/agent/state"
)

var exitWords = map[string]bool{"exit": true, "quit": true, "çıkış": true}

func newChatCmd() *cobra.Command {
	var customerID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), cmd.OutOrStdout(), customerID)
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "", "customer id (asked interactively when empty)")
	return cmd
}

func runChat(ctx context.Context, out io.Writer, customerID string) error {
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	customerID = strings.TrimSpace(customerID)
	for customerID == "" {
		in, err := line.Prompt("Müşteri numaranız: ")
		if err != nil {
			return promptDone(err)
		}
		customerID = strings.TrimSpace(in)
	}
	key := statex.CustomerKey(customerID)

	fmt.Fprintln(out, "Çıkmak için 'çıkış' yazın.")
	for {
		in, err := line.Prompt("Siz: ")
		if err != nil {
			return promptDone(err)
		}
		msg := strings.TrimSpace(in)
		if msg == "" {
			continue
		}
		if exitWords[strings.ToLower(msg)] {
			return nil
		}
		line.AppendHistory(msg)

		reply, err := eng.HandleTurn(ctx, customerID, msg, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Asistan: %s\n", reply)
	}
}

func promptDone(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
		return nil
	}
	return err
}
