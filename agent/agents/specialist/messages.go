package specialist

import (
	"regexp"
	"strings"

	contractx "github.com/tanpawarit/Chative-Banking-Assistant/agent/contract"
)

// Fixed replies. They are returned verbatim without a model call.
const (
	EscalationText   = "Sizi bir müşteri temsilcisine aktarıyorum. Lütfen hatta kalın, en kısa sürede size yardımcı olunacaktır."
	FarewellText     = "XYZ Bankası'nı tercih ettiğiniz için teşekkür ederiz. İyi günler dileriz."
	OutOfScopeText   = "Üzgünüm, bu konuda size yardımcı olamıyorum. Hesap bakiyeleri ve hareketleri, kart limitleri, borçları ve ayarları ile müşteriler arası para transferi konularında destek verebilirim."
	LiveAgentOffer   = "Dilerseniz sizi bir müşteri temsilcisine aktarabilirim. Aktarmamı ister misiniz?"
	DeclineText      = "Anlaşıldı. Size başka nasıl yardımcı olabilirim?"
	ApologyText      = "Üzgünüm, şu anda isteğinizi işleyemiyorum. Lütfen biraz sonra tekrar deneyin."
	IdentityRefusal  = "Güvenliğiniz gereği yalnızca kendi hesap bilgilerinize erişebilirsiniz. Başka bir müşteriye ait bilgileri paylaşamıyorum."
	PartialNotice    = "İsteğinizin yalnızca bir kısmını tamamlayabildim. Lütfen sorunuzu daha küçük parçalara bölerek tekrar iletin."
	neutralAddressee = "Sayın Müşterimiz"
)

var customerIDPattern = regexp.MustCompile(`CUST\d{4}`)

// Salutation derives the form of address from the profile. Unknown gender
// falls back to the neutral "Sayın" form.
func Salutation(p *contractx.Profile) string {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return neutralAddressee
	}
	name := strings.TrimSpace(p.Name)
	switch strings.ToLower(strings.TrimSpace(p.Gender)) {
	case "male", "m", "erkek":
		return name + " Bey"
	case "female", "f", "kadın", "kadin":
		return name + " Hanım"
	default:
		full := strings.TrimSpace(name + " " + strings.TrimSpace(p.Surname))
		return "Sayın " + full
	}
}

func withSalutation(salutation, text string) string {
	text = strings.TrimSpace(text)
	if salutation == "" || strings.HasPrefix(text, salutation) {
		return text
	}
	return salutation + ", " + text
}

// foreignCustomerIDs returns customer ids in text that belong neither to the
// session nor to ids the customer typed themselves, such as a transfer
// recipient.
func foreignCustomerIDs(text, sessionID, userMessage string) []string {
	allowed := map[string]struct{}{strings.TrimSpace(sessionID): {}}
	for _, id := range customerIDPattern.FindAllString(userMessage, -1) {
		allowed[id] = struct{}{}
	}

	var out []string
	for _, id := range customerIDPattern.FindAllString(text, -1) {
		if _, ok := allowed[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
