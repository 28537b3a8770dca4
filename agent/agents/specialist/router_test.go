package specialist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

func TestParseRouterOutput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want contractx.Decision
		ok   bool
	}{
		{raw: `{"next":"card_agent"}`, want: contractx.DecisionCard, ok: true},
		{raw: "```json\n{\"next\": \"transfer_agent\"}\n```", want: contractx.DecisionTransfer, ok: true},
		{raw: "Seçim: {\"next\":\"finish\"}", want: contractx.DecisionFinish, ok: true},
		{raw: "account_agent", want: contractx.DecisionAccount, ok: true},
		{raw: `{"next":"decline_offer"}`, ok: false},
		{raw: `{"next":"loan_agent"}`, ok: false},
		{raw: `{"next":`, ok: false},
		{raw: "bilmiyorum", ok: false},
	}
	for _, tc := range cases {
		got, ok := parseRouterOutput(tc.raw)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("parseRouterOutput(%q) = %q, %v; want %q, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRouterRoute(t *testing.T) {
	t.Parallel()

	model := newFakeModel(reply(`{"next":"card_agent"}`))
	router, err := newRouter(context.Background(), model, "router prompt", Options{}.withDefaults())
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	got, err := router.Route(context.Background(), contractx.RouterRequest{
		CustomerID: "CUST0001",
		History:    userHistory("kart limitim ne kadar?"),
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if got != contractx.DecisionCard {
		t.Fatalf("Route() = %q, want card_agent", got)
	}

	input := model.input(0)
	last := input[len(input)-1]
	if last.Role != schema.System || !strings.Contains(last.Content, "transfer_agent") {
		t.Fatalf("options message missing, last input = %#v", last)
	}
}

func TestRouterOutsideEnumerationIsOutOfScope(t *testing.T) {
	t.Parallel()

	model := newFakeModel(reply(`{"next":"loan_agent"}`))
	router, err := newRouter(context.Background(), model, "router prompt", Options{}.withDefaults())
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	got, err := router.Route(context.Background(), contractx.RouterRequest{CustomerID: "CUST0001", History: userHistory("kredi çekmek istiyorum")})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if got != contractx.DecisionOutOfScope {
		t.Fatalf("Route() = %q, want out_of_scope", got)
	}
}

func TestRouterInferenceFailure(t *testing.T) {
	t.Parallel()

	model := newFakeModel(failWith(context.DeadlineExceeded))
	router, err := newRouter(context.Background(), model, "router prompt", Options{}.withDefaults())
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}

	_, err = router.Route(context.Background(), contractx.RouterRequest{CustomerID: "CUST0001", History: userHistory("merhaba")})
	if !errors.Is(err, contractx.ErrInferenceUnavailable) {
		t.Fatalf("expected ErrInferenceUnavailable, got %v", err)
	}
}

func TestRouterHistoryWindow(t *testing.T) {
	t.Parallel()

	history := make([]contractx.Message, 0, 25)
	for i := 0; i < 25; i++ {
		history = append(history, contractx.Message{Role: contractx.RoleUser, Content: "mesaj"})
	}
	model := newFakeModel(reply("finish"))
	router, err := newRouter(context.Background(), model, "router prompt", Options{}.withDefaults())
	if err != nil {
		t.Fatalf("newRouter() error = %v", err)
	}
	if _, err := router.Route(context.Background(), contractx.RouterRequest{CustomerID: "CUST0001", History: history}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if got := len(model.input(0)); got != defaultHistoryWindow+2 {
		t.Fatalf("router input length = %d, want %d", got, defaultHistoryWindow+2)
	}
}
