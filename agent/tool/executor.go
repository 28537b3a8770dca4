package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/ledger"
	"github.com/tanpawarit/Chative-Banking-Assistant/agent/record"
)

const (
	defaultTopN   = 5
	maxListLimit  = 50
	currencyTRY   = "TRY"
	dateLayoutDay = "2006-01-02"
)

type Option func(*Executor)

func WithLedger(p ledger.Publisher) Option {
	return func(e *Executor) {
		if p != nil {
			e.ledger = p
		}
	}
}

// WithStepUpThreshold sets the largest transfer amount allowed without step-up
// authentication. Non-positive values keep the default.
func WithStepUpThreshold(v float64) Option {
	return func(e *Executor) {
		if v > 0 {
			e.threshold = v
		}
	}
}

// Executor runs catalogue tools against a record store.
type Executor struct {
	store     record.Store
	ledger    ledger.Publisher
	threshold float64
}

var _ contractx.ToolExecutor = (*Executor)(nil)

func NewExecutor(store record.Store, opts ...Option) *Executor {
	e := &Executor{
		store:     store,
		ledger:    ledger.Noop{},
		threshold: record.DefaultStepUpThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, customerID string, req contractx.ToolRequest) (contractx.ToolResult, error) {
	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	if claimed, ok := args[ArgCustomerID]; ok {
		if s, _ := claimed.(string); strings.TrimSpace(s) != customerID {
			return failure(req.Tool, contractx.ToolIdentity, contractx.ErrIdentity.Error()), nil
		}
	}

	switch req.Tool {
	case ToolFetchCustomerInfo:
		return e.customerInfo(ctx, customerID)
	case ToolFetchCards:
		return e.cards(ctx, customerID)
	case ToolFetchCreditLimits:
		return e.creditLimits(ctx, customerID)
	case ToolFetchCurrentDebt:
		return e.currentDebt(ctx, customerID)
	case ToolFetchStatementDebt:
		return e.statementDebt(ctx, customerID)
	case ToolFetchCardSettings:
		return e.cardSettings(ctx, customerID, args)
	case ToolFetchAccounts:
		return e.accounts(ctx, customerID)
	case ToolFetchAccountBalance:
		return e.accountBalance(ctx, customerID, args)
	case ToolFetchTransactions:
		return e.transactions(ctx, customerID, args)
	case ToolFetchTopTransactions:
		return e.topTransactions(ctx, customerID, args)
	case ToolTransferFunds:
		return e.transfer(ctx, customerID, args)
	default:
		return failure(req.Tool, contractx.ToolInvalidArgument, fmt.Sprintf("unknown tool %q", req.Tool)), nil
	}
}

func success(tool string, result any) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Code: contractx.ToolOK, Result: result}
}

func failure(tool string, code contractx.ToolCode, msg string) contractx.ToolResult {
	return contractx.ToolResult{Tool: tool, Code: code, Error: msg}
}

// classify maps store errors to result codes. Anything unrecognised is an
// infrastructure failure and is returned as an error.
func classify(tool string, err error) (contractx.ToolResult, error) {
	switch {
	case errors.Is(err, record.ErrNotFound), errors.Is(err, record.ErrRecipientNotFound):
		return failure(tool, contractx.ToolNotFound, err.Error()), nil
	case errors.Is(err, record.ErrInsufficientFunds), errors.Is(err, record.ErrStepUpRequired):
		return failure(tool, contractx.ToolPolicy, err.Error()), nil
	case errors.Is(err, record.ErrInvalidAmount), errors.Is(err, record.ErrInvalidTransfer):
		return failure(tool, contractx.ToolInvalidArgument, err.Error()), nil
	default:
		return contractx.ToolResult{}, fmt.Errorf("tool %s: %w", tool, err)
	}
}

type customerInfo struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname,omitempty"`
	Gender     string `json:"gender,omitempty"`
}

func (e *Executor) customerInfo(ctx context.Context, customerID string) (contractx.ToolResult, error) {
	c, err := e.store.Customer(ctx, customerID)
	if err != nil {
		return classify(ToolFetchCustomerInfo, err)
	}
	return success(ToolFetchCustomerInfo, customerInfo{CustomerID: c.ID, Name: c.Name, Surname: c.Surname, Gender: c.Gender}), nil
}

type cardList struct {
	CardNumbers []string `json:"card_numbers"`
}

// cards merges issued cards with card numbers seen in transaction history.
func (e *Executor) cards(ctx context.Context, customerID string) (contractx.ToolResult, error) {
	cards, err := e.store.Cards(ctx, customerID)
	if err != nil {
		return classify(ToolFetchCards, err)
	}
	txs, err := e.store.Transactions(ctx, customerID, record.TransactionFilter{})
	if err != nil {
		return classify(ToolFetchCards, err)
	}

	seen := make(map[string]struct{})
	for _, c := range cards {
		seen[c.Number] = struct{}{}
	}
	for _, tx := range txs {
		if tx.CardNumber != "" {
			seen[tx.CardNumber] = struct{}{}
		}
	}
	numbers := make([]string, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return success(ToolFetchCards, cardList{CardNumbers: numbers}), nil
}

type creditLimits struct {
	TotalLimit     float64 `json:"total_limit"`
	AvailableLimit float64 `json:"available_limit"`
	Currency       string  `json:"currency"`
}

func (e *Executor) creditLimits(ctx context.Context, customerID string) (contractx.ToolResult, error) {
	cards, err := e.store.Cards(ctx, customerID)
	if err != nil {
		return classify(ToolFetchCreditLimits, err)
	}
	var out creditLimits
	out.Currency = currencyTRY
	for _, c := range cards {
		out.TotalLimit += c.CreditLimit
		out.AvailableLimit += c.AvailableLimit
	}
	return success(ToolFetchCreditLimits, out), nil
}

type currentDebt struct {
	TotalDebt float64 `json:"total_debt"`
	Currency  string  `json:"currency"`
}

func (e *Executor) currentDebt(ctx context.Context, customerID string) (contractx.ToolResult, error) {
	cards, err := e.store.Cards(ctx, customerID)
	if err != nil {
		return classify(ToolFetchCurrentDebt, err)
	}
	out := currentDebt{Currency: currencyTRY}
	for _, c := range cards {
		out.TotalDebt += c.CurrentDebt
	}
	return success(ToolFetchCurrentDebt, out), nil
}

type statementLine struct {
	CardNumber    string  `json:"card_number"`
	StatementDebt float64 `json:"statement_debt"`
	DueDate       string  `json:"due_date,omitempty"`
}

func (e *Executor) statementDebt(ctx context.Context, customerID string) (contractx.ToolResult, error) {
	cards, err := e.store.Cards(ctx, customerID)
	if err != nil {
		return classify(ToolFetchStatementDebt, err)
	}
	lines := make([]statementLine, 0, len(cards))
	for _, c := range cards {
		if c.Kind != record.CardKindCredit {
			continue
		}
		lines = append(lines, statementLine{CardNumber: c.Number, StatementDebt: c.StatementDebt, DueDate: c.StatementDueDate})
	}
	return success(ToolFetchStatementDebt, lines), nil
}

type cardSettings struct {
	CardNumber          string `json:"card_number"`
	OnlineShopping      bool   `json:"online_shopping"`
	QRPayment           bool   `json:"qr_payment"`
	StatementPreference string `json:"statement_preference,omitempty"`
}

func (e *Executor) cardSettings(ctx context.Context, customerID string, args map[string]any) (contractx.ToolResult, error) {
	number, err := requiredString(args, "card_number")
	if err != nil {
		return failure(ToolFetchCardSettings, contractx.ToolInvalidArgument, err.Error()), nil
	}
	cards, err := e.store.Cards(ctx, customerID)
	if err != nil {
		return classify(ToolFetchCardSettings, err)
	}
	for _, c := range cards {
		if c.Number == number {
			return success(ToolFetchCardSettings, cardSettings{
				CardNumber:          c.Number,
				OnlineShopping:      c.OnlineShopping,
				QRPayment:           c.QRPayment,
				StatementPreference: c.StatementPreference,
			}), nil
		}
	}
	return failure(ToolFetchCardSettings, contractx.ToolNotFound, "card not found"), nil
}

func (e *Executor) accounts(ctx context.Context, customerID string) (contractx.ToolResult, error) {
	accounts, err := e.store.Accounts(ctx, customerID)
	if err != nil {
		return classify(ToolFetchAccounts, err)
	}
	return success(ToolFetchAccounts, accounts), nil
}

type accountBalance struct {
	AccountNumber string  `json:"account_number"`
	Balance       float64 `json:"balance"`
	Currency      string  `json:"currency"`
}

func (e *Executor) accountBalance(ctx context.Context, customerID string, args map[string]any) (contractx.ToolResult, error) {
	number, err := requiredString(args, "account_number")
	if err != nil {
		return failure(ToolFetchAccountBalance, contractx.ToolInvalidArgument, err.Error()), nil
	}
	accounts, err := e.store.Accounts(ctx, customerID)
	if err != nil {
		return classify(ToolFetchAccountBalance, err)
	}
	for _, a := range accounts {
		if a.Number == number {
			currency := a.Currency
			if currency == "" {
				currency = currencyTRY
			}
			return success(ToolFetchAccountBalance, accountBalance{AccountNumber: a.Number, Balance: a.Balance, Currency: currency}), nil
		}
	}
	return failure(ToolFetchAccountBalance, contractx.ToolNotFound, "account not found"), nil
}

type transactionList struct {
	Count        int                  `json:"count"`
	Transactions []record.Transaction `json:"transactions"`
}

func (e *Executor) transactions(ctx context.Context, customerID string, args map[string]any) (contractx.ToolResult, error) {
	filter, err := transactionFilter(args)
	if err != nil {
		return failure(ToolFetchTransactions, contractx.ToolInvalidArgument, err.Error()), nil
	}
	txs, err := e.store.Transactions(ctx, customerID, filter)
	if err != nil {
		return classify(ToolFetchTransactions, err)
	}
	if filter.TransactionID != "" && len(txs) == 0 {
		return failure(ToolFetchTransactions, contractx.ToolNotFound, "transaction not found"), nil
	}
	return success(ToolFetchTransactions, transactionList{Count: len(txs), Transactions: txs}), nil
}

func (e *Executor) topTransactions(ctx context.Context, customerID string, args map[string]any) (contractx.ToolResult, error) {
	n, err := optionalInt(args, "n")
	if err != nil {
		return failure(ToolFetchTopTransactions, contractx.ToolInvalidArgument, err.Error()), nil
	}
	if n <= 0 {
		n = defaultTopN
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	txType, err := txTypeArg(args)
	if err != nil {
		return failure(ToolFetchTopTransactions, contractx.ToolInvalidArgument, err.Error()), nil
	}
	txs, err := e.store.TopTransactions(ctx, customerID, n, txType)
	if err != nil {
		return classify(ToolFetchTopTransactions, err)
	}
	return success(ToolFetchTopTransactions, transactionList{Count: len(txs), Transactions: txs}), nil
}

func (e *Executor) transfer(ctx context.Context, customerID string, args map[string]any) (contractx.ToolResult, error) {
	from, err := requiredString(args, "from_account")
	if err != nil {
		return failure(ToolTransferFunds, contractx.ToolInvalidArgument, err.Error()), nil
	}
	recipient, err := requiredString(args, "recipient_id")
	if err != nil {
		return failure(ToolTransferFunds, contractx.ToolInvalidArgument, err.Error()), nil
	}
	amount, err := requiredFloat(args, "amount")
	if err != nil {
		return failure(ToolTransferFunds, contractx.ToolInvalidArgument, err.Error()), nil
	}
	description, _ := args["description"].(string)

	req := record.TransferRequest{
		CustomerID:  customerID,
		FromAccount: from,
		RecipientID: recipient,
		Amount:      amount,
		Description: strings.TrimSpace(description),
	}
	if err := record.CheckTransfer(req, e.threshold); err != nil {
		return classify(ToolTransferFunds, err)
	}

	receipt, err := e.store.Transfer(ctx, req)
	if err != nil {
		return classify(ToolTransferFunds, err)
	}

	ev := ledger.TransferEvent{
		Type:          ledger.EventTransferCompleted,
		TransactionID: receipt.TransactionID,
		CustomerID:    customerID,
		FromAccount:   receipt.FromAccount,
		RecipientID:   receipt.RecipientID,
		Amount:        receipt.Amount,
		Currency:      currencyTRY,
		Description:   req.Description,
		ExecutedAt:    receipt.ExecutedAt,
	}
	if err := e.ledger.PublishTransfer(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).
			Str("customer_id", customerID).
			Str("transaction_id", receipt.TransactionID).
			Msg("ledger publish failed")
	}
	return success(ToolTransferFunds, receipt), nil
}

func transactionFilter(args map[string]any) (record.TransactionFilter, error) {
	var f record.TransactionFilter
	f.Category, _ = args["category"].(string)
	f.Merchant, _ = args["merchant"].(string)
	f.CardNumber, _ = args["card_number"].(string)
	f.AccountNumber, _ = args["account_number"].(string)
	f.TransactionID, _ = args["transaction_id"].(string)

	txType, err := txTypeArg(args)
	if err != nil {
		return f, err
	}
	f.Type = txType

	if f.From, err = optionalDate(args, "from", false); err != nil {
		return f, err
	}
	if f.To, err = optionalDate(args, "to", true); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, errors.New("to must not be before from")
	}

	limit, err := optionalInt(args, "limit")
	if err != nil {
		return f, err
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	f.Limit = limit
	return f, nil
}

func txTypeArg(args map[string]any) (string, error) {
	raw, _ := args["type"].(string)
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case "", record.TxTypeDebit, record.TxTypeCredit:
		return v, nil
	default:
		return "", fmt.Errorf("type must be debit or credit, got %q", raw)
	}
}

func requiredString(args map[string]any, key string) (string, error) {
	v, _ := args[key].(string)
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func requiredFloat(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), "%g", &f); err != nil {
			return 0, fmt.Errorf("%s must be a number", key)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("%s is required", key)
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

func optionalInt(args map[string]any, key string) (int, error) {
	if _, present := args[key]; !present {
		return 0, nil
	}
	f, err := requiredFloat(args, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// optionalDate accepts YYYY-MM-DD or RFC 3339. A bare end date covers the whole day.
func optionalDate(args map[string]any, key string, endOfDay bool) (time.Time, error) {
	raw, _ := args[key].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayoutDay, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
