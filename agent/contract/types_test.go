package contract

import "testing"

func TestParseDecision(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want Decision
		ok   bool
	}{
		{raw: "account_agent", want: DecisionAccount, ok: true},
		{raw: "  CARD_AGENT ", want: DecisionCard, ok: true},
		{raw: "`transfer_agent`", want: DecisionTransfer, ok: true},
		{raw: "\"finish\"", want: DecisionFinish, ok: true},
		{raw: "decline_offer", ok: false},
		{raw: "fallback", ok: false},
		{raw: "loan_agent", ok: false},
		{raw: "", ok: false},
	}

	for _, tc := range cases {
		got, ok := ParseDecision(tc.raw)
		if ok != tc.ok {
			t.Fatalf("ParseDecision(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseDecision(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestDecisionSets(t *testing.T) {
	t.Parallel()

	for _, d := range RouterDecisions {
		if !d.Valid() {
			t.Fatalf("router decision %q must be valid", d)
		}
	}
	if DecisionDeclineOffer.RouterChoosable() || DecisionFallback.RouterChoosable() {
		t.Fatal("engine-only decisions must not be router choosable")
	}
	if !DecisionDeclineOffer.Valid() || !DecisionFallback.Valid() {
		t.Fatal("engine-only decisions must be valid edges")
	}
	if Decision("loan_agent").Valid() {
		t.Fatal("unknown decision must be invalid")
	}
	if agent, ok := DecisionTransfer.Specialist(); !ok || agent != AgentTypeTransfer {
		t.Fatalf("DecisionTransfer.Specialist() = %q, %v", agent, ok)
	}
	if _, ok := DecisionOutOfScope.Specialist(); ok {
		t.Fatal("out_of_scope has no specialist")
	}
	if !DecisionLiveAgent.Terminal() || !DecisionFinish.Terminal() || DecisionOutOfScope.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestConversationStateHistoryIsCopy(t *testing.T) {
	t.Parallel()

	st := &ConversationState{CustomerID: "CUST0001"}
	st.Append(Message{Role: RoleUser, Content: "bakiyemi göster"})

	h := st.History()
	h[0].Content = "changed"
	if st.Messages[0].Content != "bakiyemi göster" {
		t.Fatalf("History() must return a copy, state mutated to %q", st.Messages[0].Content)
	}
}
