package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tanpawarit/Chative-Banking-Assistant/agent/agents/orchestrator"
)

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	for _, name := range []string{"serve", "chat"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("command %q not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("env") == nil {
		t.Fatal("--env flag missing")
	}
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	if !isClientError(fmt.Errorf("validate: %w", orchestrator.ErrInvalidMessage)) {
		t.Fatal("invalid message should be a client error")
	}
	if !isClientError(orchestrator.ErrInvalidCustomer) {
		t.Fatal("invalid customer should be a client error")
	}
	if isClientError(errors.New("redis down")) {
		t.Fatal("store failure is not a client error")
	}
}
