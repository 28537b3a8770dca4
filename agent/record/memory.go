package record

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tanpawarit/Chative-Banking-Assistant/pkg/keylock"
)

// MemoryStore serves records from an in-process dataset. Transfers are
// serialized per account through a keyed lock taken in sorted order.
type MemoryStore struct {
	mu        sync.RWMutex
	customers map[string]*Customer
	locks     *keylock.Locker
	now       func() time.Time
}

func NewMemoryStore(customers []Customer) *MemoryStore {
	s := &MemoryStore{
		customers: make(map[string]*Customer, len(customers)),
		locks:     keylock.New(),
		now:       time.Now,
	}
	for i := range customers {
		c := cloneCustomer(customers[i])
		s.customers[c.ID] = &c
	}
	return s
}

func (s *MemoryStore) Customer(_ context.Context, customerID string) (Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return Customer{}, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return c.Profile(), nil
}

func (s *MemoryStore) Cards(_ context.Context, customerID string) ([]Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return append([]Card(nil), c.Cards...), nil
}

func (s *MemoryStore) Accounts(_ context.Context, customerID string) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return append([]Account(nil), c.Accounts...), nil
}

func (s *MemoryStore) Transactions(_ context.Context, customerID string, filter TransactionFilter) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return filterTransactions(c.Transactions, filter), nil
}

func (s *MemoryStore) TopTransactions(_ context.Context, customerID string, n int, txType string) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return topTransactions(c.Transactions, n, txType), nil
}

func (s *MemoryStore) Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error) {
	toAccount, err := s.recipientAccount(req.RecipientID)
	if err != nil {
		return TransferReceipt{}, err
	}
	if err := s.ownsAccount(req.CustomerID, req.FromAccount); err != nil {
		return TransferReceipt{}, err
	}

	unlock, err := s.locks.LockAll(ctx, "account:"+req.FromAccount, "account:"+toAccount)
	if err != nil {
		return TransferReceipt{}, fmt.Errorf("acquire account locks: %w", err)
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	sender := s.customers[req.CustomerID]
	recipient := s.customers[req.RecipientID]
	from := findAccount(sender, req.FromAccount)
	to := findAccount(recipient, toAccount)
	if from == nil || to == nil {
		return TransferReceipt{}, fmt.Errorf("%w: account changed during transfer", ErrNotFound)
	}

	amount := roundAmount(req.Amount)
	if amount <= 0 {
		return TransferReceipt{}, ErrInvalidAmount
	}
	if from.Balance < amount {
		return TransferReceipt{}, fmt.Errorf("%w: balance=%.2f amount=%.2f", ErrInsufficientFunds, from.Balance, amount)
	}

	from.Balance = roundAmount(from.Balance - amount)
	to.Balance = roundAmount(to.Balance + amount)

	now := s.now().UTC()
	txID := uuid.NewString()
	sender.Transactions = append(sender.Transactions, Transaction{
		ID:            txID,
		Date:          now,
		Type:          TxTypeDebit,
		Category:      CategoryTransfer,
		Merchant:      req.RecipientID,
		Amount:        amount,
		AccountNumber: from.Number,
		Description:   req.Description,
	})
	recipient.Transactions = append(recipient.Transactions, Transaction{
		ID:            txID,
		Date:          now,
		Type:          TxTypeCredit,
		Category:      CategoryTransfer,
		Merchant:      req.CustomerID,
		Amount:        amount,
		AccountNumber: to.Number,
		Description:   req.Description,
	})

	return TransferReceipt{
		TransactionID: txID,
		FromAccount:   from.Number,
		RecipientID:   req.RecipientID,
		Amount:        amount,
		NewBalance:    from.Balance,
		ExecutedAt:    now,
	}, nil
}

func (s *MemoryStore) recipientAccount(recipientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[recipientID]
	if !ok || len(c.Accounts) == 0 {
		return "", fmt.Errorf("%w: %s", ErrRecipientNotFound, recipientID)
	}
	numbers := make([]string, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		numbers = append(numbers, a.Number)
	}
	sort.Strings(numbers)
	return numbers[0], nil
}

func (s *MemoryStore) ownsAccount(customerID, accountNumber string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if findAccount(s.customers[customerID], accountNumber) == nil {
		return fmt.Errorf("%w: account %s", ErrNotFound, accountNumber)
	}
	return nil
}

func findAccount(c *Customer, number string) *Account {
	if c == nil {
		return nil
	}
	for i := range c.Accounts {
		if c.Accounts[i].Number == number {
			return &c.Accounts[i]
		}
	}
	return nil
}

func cloneCustomer(c Customer) Customer {
	c.Cards = append([]Card(nil), c.Cards...)
	c.Accounts = append([]Account(nil), c.Accounts...)
	c.Transactions = append([]Transaction(nil), c.Transactions...)
	return c
}
