package tool

import (
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

const (
	ToolFetchCustomerInfo    = "fetch_customer_info"
	ToolFetchCards           = "fetch_cards"
	ToolFetchCreditLimits    = "fetch_credit_limits"
	ToolFetchCurrentDebt     = "fetch_current_debt"
	ToolFetchStatementDebt   = "fetch_statement_debt"
	ToolFetchCardSettings    = "fetch_card_settings"
	ToolFetchAccounts        = "fetch_accounts"
	ToolFetchAccountBalance  = "fetch_account_balance"
	ToolFetchTransactions    = "fetch_transactions"
	ToolFetchTopTransactions = "fetch_top_transactions"
	ToolTransferFunds        = "transfer_funds"
)

// ArgCustomerID is accepted on every tool. When omitted it is filled with the
// session's customer id.
const ArgCustomerID = "customer_id"

var customerIDParam = &schema.ParameterInfo{
	Type: schema.String,
	Desc: "Customer id of the current session, e.g. CUST0001",
}

func params(extra map[string]*schema.ParameterInfo) *schema.ParamsOneOf {
	all := map[string]*schema.ParameterInfo{ArgCustomerID: customerIDParam}
	for k, v := range extra {
		all[k] = v
	}
	return schema.NewParamsOneOfByParams(all)
}

var catalog = map[string]*schema.ToolInfo{
	ToolFetchCustomerInfo: {
		Name:        ToolFetchCustomerInfo,
		Desc:        "Fetch the customer's name, surname and gender.",
		ParamsOneOf: params(nil),
	},
	ToolFetchCards: {
		Name:        ToolFetchCards,
		Desc:        "List the customer's unique credit and debit card numbers.",
		ParamsOneOf: params(nil),
	},
	ToolFetchCreditLimits: {
		Name:        ToolFetchCreditLimits,
		Desc:        "Fetch total and available credit limit across the customer's credit cards.",
		ParamsOneOf: params(nil),
	},
	ToolFetchCurrentDebt: {
		Name:        ToolFetchCurrentDebt,
		Desc:        "Fetch the total outstanding credit card debt.",
		ParamsOneOf: params(nil),
	},
	ToolFetchStatementDebt: {
		Name:        ToolFetchStatementDebt,
		Desc:        "Fetch statement debt and due date for each credit card.",
		ParamsOneOf: params(nil),
	},
	ToolFetchCardSettings: {
		Name: ToolFetchCardSettings,
		Desc: "Fetch a card's settings: online shopping, QR payment and statement preference.",
		ParamsOneOf: params(map[string]*schema.ParameterInfo{
			"card_number": {Type: schema.String, Desc: "Card number", Required: true},
		}),
	},
	ToolFetchAccounts: {
		Name:        ToolFetchAccounts,
		Desc:        "List the customer's bank accounts with type, currency and balance.",
		ParamsOneOf: params(nil),
	},
	ToolFetchAccountBalance: {
		Name: ToolFetchAccountBalance,
		Desc: "Fetch the balance of one of the customer's accounts.",
		ParamsOneOf: params(map[string]*schema.ParameterInfo{
			"account_number": {Type: schema.String, Desc: "Account number", Required: true},
		}),
	},
	ToolFetchTransactions: {
		Name: ToolFetchTransactions,
		Desc: "List transactions newest first. Every filter is optional.",
		ParamsOneOf: params(map[string]*schema.ParameterInfo{
			"category":       {Type: schema.String, Desc: "Spending category, e.g. market, fuel, restaurant"},
			"type":           {Type: schema.String, Desc: "Direction of money", Enum: []string{"debit", "credit"}},
			"merchant":       {Type: schema.String, Desc: "Merchant name or part of it"},
			"card_number":    {Type: schema.String, Desc: "Only transactions made with this card"},
			"account_number": {Type: schema.String, Desc: "Only transactions on this account"},
			"from":           {Type: schema.String, Desc: "Start date, YYYY-MM-DD"},
			"to":             {Type: schema.String, Desc: "End date, YYYY-MM-DD, inclusive"},
			"transaction_id": {Type: schema.String, Desc: "A single transaction id"},
			"limit":          {Type: schema.Integer, Desc: "Maximum number of transactions"},
		}),
	},
	ToolFetchTopTransactions: {
		Name: ToolFetchTopTransactions,
		Desc: "List the customer's largest transactions by amount.",
		ParamsOneOf: params(map[string]*schema.ParameterInfo{
			"n":    {Type: schema.Integer, Desc: "How many transactions to return", Required: true},
			"type": {Type: schema.String, Desc: "Direction of money", Enum: []string{"debit", "credit"}},
		}),
	},
	ToolTransferFunds: {
		Name: ToolTransferFunds,
		Desc: "Transfer money from one of the customer's accounts to another customer.",
		ParamsOneOf: params(map[string]*schema.ParameterInfo{
			"from_account": {Type: schema.String, Desc: "Sender account number owned by the customer", Required: true},
			"recipient_id": {Type: schema.String, Desc: "Recipient customer id", Required: true},
			"amount":       {Type: schema.Number, Desc: "Amount in TRY", Required: true},
			"description":  {Type: schema.String, Desc: "Optional transfer note"},
		}),
	},
}

var agentTools = map[contractx.AgentType][]string{
	contractx.AgentTypeAccount: {
		ToolFetchAccounts,
		ToolFetchAccountBalance,
		ToolFetchTransactions,
		ToolFetchTopTransactions,
		ToolFetchCustomerInfo,
	},
	contractx.AgentTypeCard: {
		ToolFetchCards,
		ToolFetchCreditLimits,
		ToolFetchCurrentDebt,
		ToolFetchStatementDebt,
		ToolFetchCardSettings,
		ToolFetchTransactions,
	},
	contractx.AgentTypeTransfer: {
		ToolFetchAccounts,
		ToolFetchAccountBalance,
		ToolTransferFunds,
	},
}

// BuildForAgent returns the tool schemas a specialist may bind, in a stable order.
func BuildForAgent(agentType contractx.AgentType) []*schema.ToolInfo {
	names := agentTools[agentType]
	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, n := range names {
		infos = append(infos, catalog[n])
	}
	return infos
}

// Allowed reports whether agentType may call tool.
func Allowed(agentType contractx.AgentType, tool string) bool {
	for _, n := range agentTools[agentType] {
		if n == tool {
			return true
		}
	}
	return false
}

func Known(tool string) bool {
	_, ok := catalog[tool]
	return ok
}
