package record

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrStepUpRequired    = errors.New("amount requires step-up authentication")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidTransfer   = errors.New("invalid transfer")
)

const (
	CardKindCredit = "credit"
	CardKindDebit  = "debit"

	TxTypeDebit  = "debit"
	TxTypeCredit = "credit"

	CategoryTransfer = "transfer"
)

type Customer struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Surname      string        `json:"surname" yaml:"surname"`
	Gender       string        `json:"gender" yaml:"gender"`
	Cards        []Card        `json:"cards,omitempty" yaml:"cards"`
	Accounts     []Account     `json:"accounts,omitempty" yaml:"accounts"`
	Transactions []Transaction `json:"transactions,omitempty" yaml:"transactions"`
}

// Profile drops the nested collections.
func (c Customer) Profile() Customer {
	return Customer{ID: c.ID, Name: c.Name, Surname: c.Surname, Gender: c.Gender}
}

type Card struct {
	Number              string  `json:"card_number" yaml:"card_number"`
	Kind                string  `json:"kind" yaml:"kind"`
	CreditLimit         float64 `json:"credit_limit" yaml:"credit_limit"`
	AvailableLimit      float64 `json:"available_limit" yaml:"available_limit"`
	CurrentDebt         float64 `json:"current_debt" yaml:"current_debt"`
	StatementDebt       float64 `json:"statement_debt" yaml:"statement_debt"`
	StatementDueDate    string  `json:"statement_due_date,omitempty" yaml:"statement_due_date"`
	OnlineShopping      bool    `json:"online_shopping_enabled" yaml:"online_shopping_enabled"`
	QRPayment           bool    `json:"qr_payment_enabled" yaml:"qr_payment_enabled"`
	StatementPreference string  `json:"statement_preference,omitempty" yaml:"statement_preference"`
}

type Account struct {
	Number   string  `json:"account_number" yaml:"account_number"`
	Type     string  `json:"account_type" yaml:"account_type"`
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

type Transaction struct {
	ID            string    `json:"transaction_id" yaml:"transaction_id"`
	Date          time.Time `json:"date" yaml:"date"`
	Type          string    `json:"type" yaml:"type"`
	Category      string    `json:"category,omitempty" yaml:"category"`
	Merchant      string    `json:"merchant,omitempty" yaml:"merchant"`
	Amount        float64   `json:"amount" yaml:"amount"`
	CardNumber    string    `json:"card_number,omitempty" yaml:"card_number"`
	AccountNumber string    `json:"account_number,omitempty" yaml:"account_number"`
	Description   string    `json:"description,omitempty" yaml:"description"`
}

// TransactionFilter narrows a transaction listing. Zero fields match everything.
type TransactionFilter struct {
	Category      string
	Type          string
	Merchant      string
	CardNumber    string
	AccountNumber string
	From          time.Time
	To            time.Time
	TransactionID string
	Limit         int
}

type TransferRequest struct {
	CustomerID  string
	FromAccount string
	RecipientID string
	Amount      float64
	Description string
}

type TransferReceipt struct {
	TransactionID string    `json:"transaction_id"`
	FromAccount   string    `json:"from_account"`
	RecipientID   string    `json:"recipient_id"`
	Amount        float64   `json:"amount"`
	NewBalance    float64   `json:"new_balance"`
	ExecutedAt    time.Time `json:"executed_at"`
}
