package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
)

// stripSeparators keeps only digits, dropping spaces and dashes.
func stripSeparators(cardNumber string) string {
	var b strings.Builder
	for _, r := range cardNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// simulatePayment runs the deterministic payment check. Card numbers
// succeed exactly when their digits start with the configured test
// prefix; cash never fails here.
func (s *Service) simulatePayment(method enums.PaymentMethod, cardNumber string, now time.Time) PaymentOutcome {
	outcome := PaymentOutcome{
		TransactionID: fmt.Sprintf("tr_%d", now.UnixMilli()),
	}

	if method == enums.PaymentMethodCash {
		outcome.Accepted = true
		return outcome
	}

	digits := stripSeparators(cardNumber)
	if len(digits) >= 4 {
		outcome.CardLast4 = digits[len(digits)-4:]
	}

	if strings.HasPrefix(digits, s.cfg.CardTestPrefix) {
		outcome.Accepted = true
		return outcome
	}

	outcome.FailureReason = "card declined"
	return outcome
}
