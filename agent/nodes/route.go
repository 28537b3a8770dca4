package orchestratornode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

type offerReply int

const (
	offerUnrelated offerReply = iota
	offerAccepted
	offerDeclined
)

// maxOfferReplyWords bounds how long a yes/no answer to the live-agent offer
// may be; longer messages are treated as a new question.
const maxOfferReplyWords = 4

var (
	affirmativeWords = map[string]struct{}{
		"evet": {}, "olur": {}, "tamam": {}, "isterim": {}, "aktar": {}, "aktarın": {},
		"bağla": {}, "bağlayın": {}, "lütfen": {}, "peki": {}, "yes": {}, "ok": {}, "okay": {},
	}
	negativeWords = map[string]struct{}{
		"hayır": {}, "hayir": {}, "istemiyorum": {}, "istemem": {},
		"no": {}, "nope": {}, "vazgeçtim": {},
	}
	// "yok" declines only as a leading answer ("yok, teşekkürler"); inside a
	// question such as "kartım yok mu" it is not a reply to the offer.
	negativePhrases = []string{"gerek yok", "gerekmez"}
	turkishLower = cases.Lower(language.Turkish)
)

// Route applies the pending-offer rules before asking the router. Only a
// turn that actually showed the live-agent offer makes a yes/no reply count.
// A router inference failure is recovered as the fallback decision.
func Route(ctx context.Context, in *GraphState, router contractx.Router) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	logger := log.Ctx(ctx).With().Str("customer_id", in.CustomerID).Str("session", in.Key.String()).Logger()

	if in.OfferPending {
		switch classifyOfferReply(in.Text) {
		case offerAccepted:
			in.Decision = contractx.DecisionLiveAgent
			return in, nil
		case offerDeclined:
			in.Decision = contractx.DecisionDeclineOffer
			return in, nil
		}
	}

	decision, err := router.Route(ctx, contractx.RouterRequest{
		CustomerID: in.CustomerID,
		History:    in.State.History(),
	})
	if err != nil {
		if !errors.Is(err, contractx.ErrInferenceUnavailable) {
			return nil, err
		}
		logger.Warn().Err(err).Msg("routing unavailable")
		in.Decision = contractx.DecisionFallback
		return in, nil
	}
	if !decision.RouterChoosable() {
		logger.Warn().Str("decision", string(decision)).Msg("router returned a non-choosable decision")
		decision = contractx.DecisionOutOfScope
	}

	in.Decision = decision
	in.SuppressOffer = decision == contractx.DecisionOutOfScope &&
		(in.PrevNext == contractx.DecisionOutOfScope || in.PrevNext == contractx.DecisionDeclineOffer)
	return in, nil
}

func classifyOfferReply(text string) offerReply {
	words := strings.FieldsFunc(turkishLower.String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 || len(words) > maxOfferReplyWords {
		return offerUnrelated
	}

	if words[0] == "yok" {
		return offerDeclined
	}
	joined := " " + strings.Join(words, " ") + " "
	for _, phrase := range negativePhrases {
		if strings.Contains(joined, " "+phrase+" ") {
			return offerDeclined
		}
	}

	affirmative := false
	for _, w := range words {
		if _, ok := negativeWords[w]; ok {
			return offerDeclined
		}
		if _, ok := affirmativeWords[w]; ok {
			affirmative = true
		}
	}
	if affirmative {
		return offerAccepted
	}
	return offerUnrelated
}
