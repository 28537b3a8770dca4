package record

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

// DefaultStepUpThreshold is the largest amount a transfer may move without
// step-up authentication.
const DefaultStepUpThreshold = 10000

// Store is the read-mostly record backend. Every method takes an already
// validated customer id; unknown customers yield ErrNotFound.
type Store interface {
	Customer(ctx context.Context, customerID string) (Customer, error)
	Cards(ctx context.Context, customerID string) ([]Card, error)
	Accounts(ctx context.Context, customerID string) ([]Account, error)
	Transactions(ctx context.Context, customerID string, filter TransactionFilter) ([]Transaction, error)
	TopTransactions(ctx context.Context, customerID string, n int, txType string) ([]Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error)
}

// CheckTransfer applies the stateless transfer policy to the amount the
// store will actually move, rounded to kuruş. Ownership, recipient and
// balance checks happen inside the store's critical section.
func CheckTransfer(req TransferRequest, threshold float64) error {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return ErrInvalidAmount
	}
	amount := roundAmount(req.Amount)
	if amount <= 0 {
		return fmt.Errorf("%w: amount rounds to %.2f", ErrInvalidAmount, amount)
	}
	if threshold > 0 && amount > threshold {
		return fmt.Errorf("%w: limit=%.2f", ErrStepUpRequired, threshold)
	}
	if strings.TrimSpace(req.FromAccount) == "" || strings.TrimSpace(req.RecipientID) == "" {
		return fmt.Errorf("%w: from_account and recipient_id are required", ErrInvalidTransfer)
	}
	if req.RecipientID == req.CustomerID {
		return fmt.Errorf("%w: recipient is the sender", ErrInvalidTransfer)
	}
	return nil
}

func roundAmount(v float64) float64 {
	return math.Round(v*100) / 100
}

// Directory adapts a Store to the customer directory port.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

func (d *Directory) IsValidCustomer(ctx context.Context, customerID string) (bool, error) {
	if strings.TrimSpace(customerID) == "" {
		return false, nil
	}
	_, err := d.store.Customer(ctx, customerID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (d *Directory) Profile(ctx context.Context, customerID string) (contractx.Profile, bool, error) {
	c, err := d.store.Customer(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		return contractx.Profile{}, false, nil
	}
	if err != nil {
		return contractx.Profile{}, false, err
	}
	return contractx.Profile{
		CustomerID: c.ID,
		Name:       c.Name,
		Surname:    c.Surname,
		Gender:     c.Gender,
	}, true, nil
}

func (f TransactionFilter) match(tx Transaction) bool {
	if f.TransactionID != "" && tx.ID != f.TransactionID {
		return false
	}
	if f.Category != "" && !strings.EqualFold(tx.Category, f.Category) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(tx.Type, f.Type) {
		return false
	}
	if f.Merchant != "" && !strings.Contains(strings.ToLower(tx.Merchant), strings.ToLower(f.Merchant)) {
		return false
	}
	if f.CardNumber != "" && tx.CardNumber != f.CardNumber {
		return false
	}
	if f.AccountNumber != "" && tx.AccountNumber != f.AccountNumber {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	return true
}

// filterTransactions returns matching transactions newest first.
func filterTransactions(txs []Transaction, f TransactionFilter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if f.match(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func topTransactions(txs []Transaction, n int, txType string) []Transaction {
	out := filterTransactions(txs, TransactionFilter{Type: txType})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount > out[j].Amount })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
