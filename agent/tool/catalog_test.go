package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/ledger"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/record"
)

func testStore() *record.MemoryStore {
	return record.NewMemoryStore([]record.Customer{
		{
			ID: "CUST0001", Name: "Ahmet", Gender: "male",
			Cards: []record.Card{
				{Number: "1111", Kind: record.CardKindCredit, CreditLimit: 1000, AvailableLimit: 700, CurrentDebt: 300, StatementDebt: 250, StatementDueDate: "2025-03-15", OnlineShopping: true},
				{Number: "2222", Kind: record.CardKindDebit},
			},
			Accounts: []record.Account{{Number: "TR01", Currency: "TRY", Balance: 20000}},
			Transactions: []record.Transaction{
				{ID: "T1", Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Type: record.TxTypeDebit, Category: "market", Amount: 50, CardNumber: "3333"},
				{ID: "T2", Date: time.Date(2025, 2, 9, 0, 0, 0, 0, time.UTC), Type: record.TxTypeDebit, Category: "fuel", Amount: 900, CardNumber: "1111"},
			},
		},
		{ID: "CUST0002", Name: "Ayşe", Accounts: []record.Account{{Number: "TR02", Balance: 0}}},
	})
}

func TestBuildForAgent(t *testing.T) {
	t.Parallel()

	cases := map[contractx.AgentType][]string{
		contractx.AgentTypeAccount:  {ToolFetchAccounts, ToolFetchAccountBalance, ToolFetchTransactions, ToolFetchTopTransactions, ToolFetchCustomerInfo},
		contractx.AgentTypeCard:     {ToolFetchCards, ToolFetchCreditLimits, ToolFetchCurrentDebt, ToolFetchStatementDebt, ToolFetchCardSettings, ToolFetchTransactions},
		contractx.AgentTypeTransfer: {ToolFetchAccounts, ToolFetchAccountBalance, ToolTransferFunds},
	}
	for agentType, want := range cases {
		infos := BuildForAgent(agentType)
		if len(infos) != len(want) {
			t.Fatalf("%s: expected %d tools, got %d", agentType, len(want), len(infos))
		}
		for i, info := range infos {
			if info.Name != want[i] {
				t.Fatalf("%s: tool %d = %s, want %s", agentType, i, info.Name, want[i])
			}
		}
	}

	if len(BuildForAgent(contractx.AgentTypeRouter)) != 0 {
		t.Fatal("router must not receive tools")
	}
	if Allowed(contractx.AgentTypeCard, ToolTransferFunds) {
		t.Fatal("card agent must not transfer funds")
	}
	if !Known(ToolTransferFunds) || Known("math.evaluate") {
		t.Fatal("unexpected catalogue membership")
	}
}

func TestExecuteRejectsForeignCustomerID(t *testing.T) {
	t.Parallel()

	e := NewExecutor(testStore())
	out, err := e.Execute(context.Background(), "CUST0001", contractx.ToolRequest{
		Tool: ToolFetchAccounts,
		Args: map[string]any{"customer_id": "CUST0002"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if out.Code != contractx.ToolIdentity || out.Result != nil {
		t.Fatalf("expected identity refusal without data, got %+v", out)
	}
}

func TestExecuteCardTools(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := NewExecutor(testStore())

	out, err := e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchCards})
	if err != nil {
		t.Fatalf("Execute(cards) error = %v", err)
	}
	cards := out.Result.(cardList)
	if len(cards.CardNumbers) != 3 || cards.CardNumbers[0] != "1111" || cards.CardNumbers[2] != "3333" {
		t.Fatalf("unexpected card numbers: %+v", cards)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchCreditLimits})
	if limits := out.Result.(creditLimits); limits.TotalLimit != 1000 || limits.AvailableLimit != 700 {
		t.Fatalf("unexpected limits: %+v", limits)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchStatementDebt})
	if lines := out.Result.([]statementLine); len(lines) != 1 || lines[0].DueDate != "2025-03-15" {
		t.Fatalf("unexpected statement lines: %+v", lines)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchCardSettings, Args: map[string]any{"card_number": "9999"}})
	if out.Code != contractx.ToolNotFound {
		t.Fatalf("expected not_found for unknown card, got %+v", out)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchCardSettings})
	if out.Code != contractx.ToolInvalidArgument {
		t.Fatalf("expected invalid_argument without card_number, got %+v", out)
	}
}

func TestExecuteTransactions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	e := NewExecutor(testStore())

	out, err := e.Execute(ctx, "CUST0001", contractx.ToolRequest{
		Tool: ToolFetchTransactions,
		Args: map[string]any{"from": "2025-02-05", "to": "2025-02-09"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	list := out.Result.(transactionList)
	if list.Count != 1 || list.Transactions[0].ID != "T2" {
		t.Fatalf("date range filter = %+v", list)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchTransactions, Args: map[string]any{"transaction_id": "NOPE"}})
	if out.Code != contractx.ToolNotFound {
		t.Fatalf("expected not_found, got %+v", out)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchTransactions, Args: map[string]any{"type": "refund"}})
	if out.Code != contractx.ToolInvalidArgument {
		t.Fatalf("expected invalid_argument, got %+v", out)
	}

	out, _ = e.Execute(ctx, "CUST0001", contractx.ToolRequest{Tool: ToolFetchTopTransactions, Args: map[string]any{"n": float64(1)}})
	if top := out.Result.(transactionList); top.Count != 1 || top.Transactions[0].Amount != 900 {
		t.Fatalf("top transactions = %+v", top)
	}
}

func TestExecuteTransferPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &ledger.Recorder{}
	e := NewExecutor(testStore(), WithLedger(rec))

	transfer := func(amount any, recipient string) contractx.ToolResult {
		t.Helper()
		out, err := e.Execute(ctx, "CUST0001", contractx.ToolRequest{
			Tool: ToolTransferFunds,
			Args: map[string]any{"from_account": "TR01", "recipient_id": recipient, "amount": amount},
		})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		return out
	}

	if out := transfer(float64(0), "CUST0002"); out.Code != contractx.ToolInvalidArgument {
		t.Fatalf("zero amount: %+v", out)
	}
	if out := transfer(0.004, "CUST0002"); out.Code != contractx.ToolInvalidArgument {
		t.Fatalf("amount rounding to zero: %+v", out)
	}
	if out := transfer(float64(10001), "CUST0002"); out.Code != contractx.ToolPolicy {
		t.Fatalf("above threshold: %+v", out)
	}
	if out := transfer(float64(10), "CUST0404"); out.Code != contractx.ToolNotFound {
		t.Fatalf("unknown recipient: %+v", out)
	}
	if len(rec.Events()) != 0 {
		t.Fatal("rejected transfers must not publish ledger events")
	}

	out := transfer("10000", "CUST0002")
	if out.Code != contractx.ToolOK {
		t.Fatalf("transfer at threshold: %+v", out)
	}
	receipt := out.Result.(record.TransferReceipt)
	if receipt.NewBalance != 10000 {
		t.Fatalf("NewBalance = %.2f, want 10000", receipt.NewBalance)
	}

	events := rec.Events()
	if len(events) != 1 || events[0].TransactionID != receipt.TransactionID || events[0].Type != ledger.EventTransferCompleted {
		t.Fatalf("unexpected ledger events: %+v", events)
	}

	if out := transfer(float64(10000.5), "CUST0002"); out.Code != contractx.ToolPolicy {
		t.Fatalf("step-up must precede balance check: %+v", out)
	}
	if out := transfer(float64(10000), "CUST0002"); out.Code != contractx.ToolOK {
		t.Fatalf("second transfer: %+v", out)
	}
	if out := transfer(float64(1), "CUST0002"); out.Code != contractx.ToolPolicy {
		t.Fatalf("insufficient balance: %+v", out)
	}
}

type failingStore struct {
	record.Store
}

func (failingStore) Accounts(context.Context, string) ([]record.Account, error) {
	return nil, errors.New("connection reset")
}

func TestExecuteSurfacesInfrastructureErrors(t *testing.T) {
	t.Parallel()

	e := NewExecutor(failingStore{})
	_, err := e.Execute(context.Background(), "CUST0001", contractx.ToolRequest{Tool: ToolFetchAccounts})
	if err == nil {
		t.Fatal("expected store failure to be returned as error")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	t.Parallel()

	out, err := NewExecutor(testStore()).Execute(context.Background(), "CUST0001", contractx.ToolRequest{Tool: "math.evaluate"})
	if err != nil || out.Code != contractx.ToolInvalidArgument {
		t.Fatalf("Execute() = %+v, %v", out, err)
	}
}
