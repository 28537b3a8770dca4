package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type customerRow struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID      string `bun:"id,pk,type:varchar(32)"`
	Name    string `bun:"name,notnull"`
	Surname string `bun:"surname,notnull"`
	Gender  string `bun:"gender,notnull"`
}

type cardRow struct {
	bun.BaseModel `bun:"table:cards,alias:cd"`

	Number              string  `bun:"card_number,pk,type:varchar(32)"`
	CustomerID          string  `bun:"customer_id,notnull,type:varchar(32)"`
	Kind                string  `bun:"kind,notnull"`
	CreditLimit         float64 `bun:"credit_limit,notnull"`
	AvailableLimit      float64 `bun:"available_limit,notnull"`
	CurrentDebt         float64 `bun:"current_debt,notnull"`
	StatementDebt       float64 `bun:"statement_debt,notnull"`
	StatementDueDate    string  `bun:"statement_due_date,notnull"`
	OnlineShopping      bool    `bun:"online_shopping_enabled,notnull"`
	QRPayment           bool    `bun:"qr_payment_enabled,notnull"`
	StatementPreference string  `bun:"statement_preference,notnull"`
}

type accountRow struct {
	bun.BaseModel `bun:"table:accounts,alias:a"`

	Number     string  `bun:"account_number,pk,type:varchar(34)"`
	CustomerID string  `bun:"customer_id,notnull,type:varchar(32)"`
	Type       string  `bun:"account_type,notnull"`
	Currency   string  `bun:"currency,notnull"`
	Balance    float64 `bun:"balance,notnull"`
}

type transactionRow struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	PK            int64     `bun:"pk,pk,autoincrement"`
	ID            string    `bun:"transaction_id,notnull,type:varchar(64)"`
	CustomerID    string    `bun:"customer_id,notnull,type:varchar(32)"`
	Date          time.Time `bun:"occurred_at,notnull"`
	Type          string    `bun:"tx_type,notnull"`
	Category      string    `bun:"category,notnull"`
	Merchant      string    `bun:"merchant,notnull"`
	Amount        float64   `bun:"amount,notnull"`
	CardNumber    string    `bun:"card_number,notnull"`
	AccountNumber string    `bun:"account_number,notnull"`
	Description   string    `bun:"description,notnull"`
}

// BunStore serves records from PostgreSQL or MySQL through bun. Transfers
// lock the affected account rows with SELECT ... FOR UPDATE in sorted order.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

// OpenBun connects to driver ("postgres" or "mysql"). MySQL DSNs need
// parseTime=true.
func OpenBun(ctx context.Context, driver, dsn string) (*BunStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("records dsn is required")
	}

	var db *bun.DB
	switch driver {
	case DriverPostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
	case DriverMySQL:
		sqldb, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		db = bun.NewDB(sqldb, mysqldialect.New())
	default:
		return nil, fmt.Errorf("unsupported records driver %q", driver)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return NewBunStore(db), nil
}

func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db, now: time.Now}
}

func (s *BunStore) Close() error {
	return s.db.Close()
}

// Migrate creates the record tables when missing.
func (s *BunStore) Migrate(ctx context.Context) error {
	models := []any{
		(*customerRow)(nil),
		(*cardRow)(nil),
		(*accountRow)(nil),
		(*transactionRow)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Seed inserts customers, skipping rows that already exist.
func (s *BunStore) Seed(ctx context.Context, customers []Customer) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, c := range customers {
			row := customerRow{ID: c.ID, Name: c.Name, Surname: c.Surname, Gender: c.Gender}
			res, err := tx.NewInsert().Model(&row).Ignore().Exec(ctx)
			if err != nil {
				return fmt.Errorf("seed customer %s: %w", c.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				continue
			}
			if len(c.Cards) > 0 {
				cards := make([]cardRow, 0, len(c.Cards))
				for _, card := range c.Cards {
					cards = append(cards, toCardRow(c.ID, card))
				}
				if _, err := tx.NewInsert().Model(&cards).Exec(ctx); err != nil {
					return fmt.Errorf("seed cards %s: %w", c.ID, err)
				}
			}
			if len(c.Accounts) > 0 {
				accounts := make([]accountRow, 0, len(c.Accounts))
				for _, a := range c.Accounts {
					accounts = append(accounts, accountRow{
						Number: a.Number, CustomerID: c.ID, Type: a.Type, Currency: a.Currency, Balance: a.Balance,
					})
				}
				if _, err := tx.NewInsert().Model(&accounts).Exec(ctx); err != nil {
					return fmt.Errorf("seed accounts %s: %w", c.ID, err)
				}
			}
			if len(c.Transactions) > 0 {
				txs := make([]transactionRow, 0, len(c.Transactions))
				for _, t := range c.Transactions {
					txs = append(txs, toTransactionRow(c.ID, t))
				}
				if _, err := tx.NewInsert().Model(&txs).Exec(ctx); err != nil {
					return fmt.Errorf("seed transactions %s: %w", c.ID, err)
				}
			}
		}
		return nil
	})
}

func (s *BunStore) Customer(ctx context.Context, customerID string) (Customer, error) {
	var row customerRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", customerID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	if err != nil {
		return Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return Customer{ID: row.ID, Name: row.Name, Surname: row.Surname, Gender: row.Gender}, nil
}

func (s *BunStore) Cards(ctx context.Context, customerID string) ([]Card, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	var rows []cardRow
	if err := s.db.NewSelect().Model(&rows).Where("customer_id = ?", customerID).Order("card_number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select cards: %w", err)
	}
	out := make([]Card, 0, len(rows))
	for _, r := range rows {
		out = append(out, Card{
			Number:              r.Number,
			Kind:                r.Kind,
			CreditLimit:         r.CreditLimit,
			AvailableLimit:      r.AvailableLimit,
			CurrentDebt:         r.CurrentDebt,
			StatementDebt:       r.StatementDebt,
			StatementDueDate:    r.StatementDueDate,
			OnlineShopping:      r.OnlineShopping,
			QRPayment:           r.QRPayment,
			StatementPreference: r.StatementPreference,
		})
	}
	return out, nil
}

func (s *BunStore) Accounts(ctx context.Context, customerID string) ([]Account, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	var rows []accountRow
	if err := s.db.NewSelect().Model(&rows).Where("customer_id = ?", customerID).Order("account_number ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	out := make([]Account, 0, len(rows))
	for _, r := range rows {
		out = append(out, Account{Number: r.Number, Type: r.Type, Currency: r.Currency, Balance: r.Balance})
	}
	return out, nil
}

func (s *BunStore) Transactions(ctx context.Context, customerID string, f TransactionFilter) ([]Transaction, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	var rows []transactionRow
	q := s.db.NewSelect().Model(&rows).Where("customer_id = ?", customerID)
	if f.TransactionID != "" {
		q = q.Where("transaction_id = ?", f.TransactionID)
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) = ?", strings.ToLower(f.Category))
	}
	if f.Type != "" {
		q = q.Where("tx_type = ?", strings.ToLower(f.Type))
	}
	if f.Merchant != "" {
		q = q.Where("LOWER(merchant) LIKE ?", "%"+strings.ToLower(f.Merchant)+"%")
	}
	if f.CardNumber != "" {
		q = q.Where("card_number = ?", f.CardNumber)
	}
	if f.AccountNumber != "" {
		q = q.Where("account_number = ?", f.AccountNumber)
	}
	if !f.From.IsZero() {
		q = q.Where("occurred_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("occurred_at <= ?", f.To)
	}
	q = q.Order("occurred_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return fromTransactionRows(rows), nil
}

func (s *BunStore) TopTransactions(ctx context.Context, customerID string, n int, txType string) ([]Transaction, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	var rows []transactionRow
	q := s.db.NewSelect().Model(&rows).Where("customer_id = ?", customerID)
	if txType != "" {
		q = q.Where("tx_type = ?", strings.ToLower(txType))
	}
	q = q.Order("amount DESC", "occurred_at DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select top transactions: %w", err)
	}
	return fromTransactionRows(rows), nil
}

func (s *BunStore) Transfer(ctx context.Context, req TransferRequest) (TransferReceipt, error) {
	var receipt TransferReceipt
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var target accountRow
		err := tx.NewSelect().Model(&target).
			Where("customer_id = ?", req.RecipientID).
			Order("account_number ASC").
			Limit(1).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrRecipientNotFound, req.RecipientID)
		}
		if err != nil {
			return fmt.Errorf("select recipient account: %w", err)
		}

		numbers := []string{req.FromAccount, target.Number}
		sort.Strings(numbers)
		locked := make(map[string]*accountRow, 2)
		for _, number := range numbers {
			if _, ok := locked[number]; ok {
				continue
			}
			row := new(accountRow)
			err := tx.NewSelect().Model(row).Where("account_number = ?", number).For("UPDATE").Scan(ctx)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("lock account %s: %w", number, err)
			}
			locked[number] = row
		}

		from, ok := locked[req.FromAccount]
		if !ok || from.CustomerID != req.CustomerID {
			return fmt.Errorf("%w: account %s", ErrNotFound, req.FromAccount)
		}
		to, ok := locked[target.Number]
		if !ok {
			return fmt.Errorf("%w: %s", ErrRecipientNotFound, req.RecipientID)
		}

		amount := roundAmount(req.Amount)
		if amount <= 0 {
			return ErrInvalidAmount
		}
		if from.Balance < amount {
			return fmt.Errorf("%w: balance=%.2f amount=%.2f", ErrInsufficientFunds, from.Balance, amount)
		}
		from.Balance = roundAmount(from.Balance - amount)
		to.Balance = roundAmount(to.Balance + amount)

		for _, row := range []*accountRow{from, to} {
			if _, err := tx.NewUpdate().Model(row).Column("balance").WherePK().Exec(ctx); err != nil {
				return fmt.Errorf("update balance %s: %w", row.Number, err)
			}
		}

		now := s.now().UTC()
		txID := uuid.NewString()
		legs := []transactionRow{
			{
				ID: txID, CustomerID: req.CustomerID, Date: now, Type: TxTypeDebit, Category: CategoryTransfer,
				Merchant: req.RecipientID, Amount: amount, AccountNumber: from.Number, Description: req.Description,
			},
			{
				ID: txID, CustomerID: req.RecipientID, Date: now, Type: TxTypeCredit, Category: CategoryTransfer,
				Merchant: req.CustomerID, Amount: amount, AccountNumber: to.Number, Description: req.Description,
			},
		}
		if _, err := tx.NewInsert().Model(&legs).Exec(ctx); err != nil {
			return fmt.Errorf("insert transfer legs: %w", err)
		}

		receipt = TransferReceipt{
			TransactionID: txID,
			FromAccount:   from.Number,
			RecipientID:   req.RecipientID,
			Amount:        amount,
			NewBalance:    from.Balance,
			ExecutedAt:    now,
		}
		return nil
	})
	if err != nil {
		return TransferReceipt{}, err
	}
	return receipt, nil
}

func (s *BunStore) requireCustomer(ctx context.Context, customerID string) error {
	exists, err := s.db.NewSelect().Model((*customerRow)(nil)).Where("id = ?", customerID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("check customer: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: customer %s", ErrNotFound, customerID)
	}
	return nil
}

func toCardRow(customerID string, c Card) cardRow {
	return cardRow{
		Number:              c.Number,
		CustomerID:          customerID,
		Kind:                c.Kind,
		CreditLimit:         c.CreditLimit,
		AvailableLimit:      c.AvailableLimit,
		CurrentDebt:         c.CurrentDebt,
		StatementDebt:       c.StatementDebt,
		StatementDueDate:    c.StatementDueDate,
		OnlineShopping:      c.OnlineShopping,
		QRPayment:           c.QRPayment,
		StatementPreference: c.StatementPreference,
	}
}

func toTransactionRow(customerID string, t Transaction) transactionRow {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	return transactionRow{
		ID:            id,
		CustomerID:    customerID,
		Date:          t.Date.UTC(),
		Type:          t.Type,
		Category:      t.Category,
		Merchant:      t.Merchant,
		Amount:        t.Amount,
		CardNumber:    t.CardNumber,
		AccountNumber: t.AccountNumber,
		Description:   t.Description,
	}
}

func fromTransactionRows(rows []transactionRow) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, Transaction{
			ID:            r.ID,
			Date:          r.Date,
			Type:          r.Type,
			Category:      r.Category,
			Merchant:      r.Merchant,
			Amount:        r.Amount,
			CardNumber:    r.CardNumber,
			AccountNumber: r.AccountNumber,
			Description:   r.Description,
		})
	}
	return out
}
