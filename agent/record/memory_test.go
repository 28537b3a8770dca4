package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testCustomers() []Customer {
	day := func(d int) time.Time { return time.Date(2025, 2, d, 12, 0, 0, 0, time.UTC) }
	return []Customer{
		{
			ID: "CUST0001", Name: "Ahmet", Surname: "Yılmaz", Gender: "male",
			Cards: []Card{{Number: "4543", Kind: CardKindCredit, CreditLimit: 1000, AvailableLimit: 600, CurrentDebt: 400}},
			Accounts: []Account{
				{Number: "TR01", Type: "checking", Currency: "TRY", Balance: 500},
				{Number: "TR02", Type: "savings", Currency: "TRY", Balance: 20000},
			},
			Transactions: []Transaction{
				{ID: "T1", Date: day(1), Type: TxTypeDebit, Category: "market", Merchant: "Migros", Amount: 100, CardNumber: "4543"},
				{ID: "T2", Date: day(3), Type: TxTypeDebit, Category: "fuel", Merchant: "Shell", Amount: 300, CardNumber: "4543"},
				{ID: "T3", Date: day(2), Type: TxTypeCredit, Category: "salary", Merchant: "ACME", Amount: 5000, AccountNumber: "TR01"},
			},
		},
		{
			ID: "CUST0002", Name: "Ayşe", Gender: "female",
			Accounts: []Account{{Number: "TR09", Currency: "TRY", Balance: 10}, {Number: "TR05", Currency: "TRY", Balance: 0}},
		},
	}
}

func TestMemoryStoreReads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(testCustomers())

	c, err := s.Customer(ctx, "CUST0001")
	if err != nil {
		t.Fatalf("Customer() error = %v", err)
	}
	if c.Name != "Ahmet" || len(c.Accounts) != 0 {
		t.Fatalf("Customer() should return profile only, got %+v", c)
	}

	if _, err := s.Cards(ctx, "CUST9999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Cards() error = %v, want ErrNotFound", err)
	}

	txs, err := s.Transactions(ctx, "CUST0001", TransactionFilter{Type: TxTypeDebit})
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 2 || txs[0].ID != "T2" {
		t.Fatalf("expected debit transactions newest first, got %+v", txs)
	}

	txs, err = s.Transactions(ctx, "CUST0001", TransactionFilter{Merchant: "migr"})
	if err != nil || len(txs) != 1 || txs[0].ID != "T1" {
		t.Fatalf("merchant filter = %+v, %v", txs, err)
	}

	top, err := s.TopTransactions(ctx, "CUST0001", 1, "")
	if err != nil || len(top) != 1 || top[0].ID != "T3" {
		t.Fatalf("TopTransactions() = %+v, %v", top, err)
	}
}

func TestMemoryStoreTransfer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(testCustomers())

	receipt, err := s.Transfer(ctx, TransferRequest{CustomerID: "CUST0001", FromAccount: "TR01", RecipientID: "CUST0002", Amount: 120.5})
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if receipt.NewBalance != 379.5 || receipt.TransactionID == "" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	accounts, _ := s.Accounts(ctx, "CUST0002")
	for _, a := range accounts {
		if a.Number == "TR05" && a.Balance != 120.5 {
			t.Fatalf("recipient primary account not credited: %+v", accounts)
		}
	}

	legs, _ := s.Transactions(ctx, "CUST0001", TransactionFilter{Category: CategoryTransfer})
	if len(legs) != 1 || legs[0].Type != TxTypeDebit {
		t.Fatalf("sender ledger entry missing: %+v", legs)
	}
}

func TestMemoryStoreTransferFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(testCustomers())

	cases := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"unknown recipient", TransferRequest{CustomerID: "CUST0001", FromAccount: "TR01", RecipientID: "CUST0404", Amount: 1}, ErrRecipientNotFound},
		{"foreign account", TransferRequest{CustomerID: "CUST0001", FromAccount: "TR09", RecipientID: "CUST0002", Amount: 1}, ErrNotFound},
		{"insufficient", TransferRequest{CustomerID: "CUST0001", FromAccount: "TR01", RecipientID: "CUST0002", Amount: 501}, ErrInsufficientFunds},
	}
	for _, tc := range cases {
		if _, err := s.Transfer(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: Transfer() error = %v, want %v", tc.name, err, tc.want)
		}
	}

	accounts, _ := s.Accounts(ctx, "CUST0001")
	if accounts[0].Balance != 500 {
		t.Fatalf("failed transfers must not move money, balance=%.2f", accounts[0].Balance)
	}
}

func TestMemoryStoreConcurrentTransfersNoLostUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(testCustomers())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Transfer(ctx, TransferRequest{CustomerID: "CUST0001", FromAccount: "TR01", RecipientID: "CUST0002", Amount: 100})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("Transfer() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if accepted != 5 {
		t.Fatalf("expected exactly 5 transfers of 100 from 500, got %d", accepted)
	}
	accounts, _ := s.Accounts(ctx, "CUST0001")
	if accounts[0].Balance != 0 {
		t.Fatalf("balance = %.2f, want 0", accounts[0].Balance)
	}
}

func TestMemoryStoreTransferRejectsSubKurusAmount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore(testCustomers())

	_, err := s.Transfer(ctx, TransferRequest{CustomerID: "CUST0001", FromAccount: "TR01", RecipientID: "CUST0002", Amount: 0.004})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("Transfer() error = %v, want ErrInvalidAmount", err)
	}
	txs, err := s.Transactions(ctx, "CUST0001", TransactionFilter{})
	if err != nil {
		t.Fatalf("Transactions() error = %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("no ledger entry expected, got %d transactions", len(txs))
	}
}

func TestCheckTransfer(t *testing.T) {
	t.Parallel()

	base := TransferRequest{CustomerID: "CUST0001", FromAccount: "TR01", RecipientID: "CUST0002"}

	cases := []struct {
		amount float64
		want   error
	}{
		{0, ErrInvalidAmount},
		{-5, ErrInvalidAmount},
		{0.004, ErrInvalidAmount},
		{0.01, nil},
		{10000, nil},
		{10000.004, nil},
		{10000.01, ErrStepUpRequired},
	}
	for _, tc := range cases {
		req := base
		req.Amount = tc.amount
		err := CheckTransfer(req, DefaultStepUpThreshold)
		if tc.want == nil && err != nil {
			t.Fatalf("CheckTransfer(%v) error = %v", tc.amount, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("CheckTransfer(%v) error = %v, want %v", tc.amount, err, tc.want)
		}
	}

	self := base
	self.Amount = 1
	self.RecipientID = "CUST0001"
	if err := CheckTransfer(self, DefaultStepUpThreshold); !errors.Is(err, ErrInvalidTransfer) {
		t.Fatalf("self transfer error = %v, want ErrInvalidTransfer", err)
	}
}

func TestDirectory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := NewDirectory(NewMemoryStore(testCustomers()))

	ok, err := d.IsValidCustomer(ctx, "CUST9999")
	if err != nil || ok {
		t.Fatalf("IsValidCustomer(CUST9999) = %v, %v", ok, err)
	}
	ok, err = d.IsValidCustomer(ctx, "CUST0002")
	if err != nil || !ok {
		t.Fatalf("IsValidCustomer(CUST0002) = %v, %v", ok, err)
	}

	p, found, err := d.Profile(ctx, "CUST0002")
	if err != nil || !found || p.Gender != "female" {
		t.Fatalf("Profile() = %+v, %v, %v", p, found, err)
	}
}

func TestDemoCustomers(t *testing.T) {
	t.Parallel()

	customers, err := DemoCustomers()
	if err != nil {
		t.Fatalf("DemoCustomers() error = %v", err)
	}
	if len(customers) < 3 || customers[0].ID != "CUST0001" {
		t.Fatalf("unexpected demo dataset: %d customers", len(customers))
	}
	if customers[0].Transactions[0].Date.IsZero() {
		t.Fatal("demo transaction dates were not decoded")
	}
}
