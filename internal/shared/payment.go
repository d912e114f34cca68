package shared

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// PaymentMethod enumerates tender types accepted at the counter.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "Cash"
	PaymentFonepay PaymentMethod = "Fonepay"
	PaymentBank    PaymentMethod = "Bank"
	PaymentCredit  PaymentMethod = "Credit"
)

var paymentLabels = map[PaymentMethod]string{
	PaymentCash:    "Cash",
	PaymentFonepay: "Fonepay",
	PaymentBank:    "Bank Transfer",
	PaymentCredit:  "Credit",
}

// Label returns the human readable name.
func (p PaymentMethod) Label() string {
	return paymentLabels[p]
}

// ParsePaymentMethod matches raw against stored values and labels ignoring case.
// An empty value yields PaymentCash.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	if strings.TrimSpace(raw) == "" {
		return PaymentCash, nil
	}
	v, ok := MatchFold(raw, paymentLabels)
	if !ok {
		return "", fmt.Errorf("%w: unknown payment method %q", ErrValidation, raw)
	}
	return v, nil
}

// enumSeparators are ignored when matching, so "Bank Transfer", "bank_transfer"
// and "BankTransfer" compare equal.
var enumSeparators = strings.NewReplacer(" ", "", "_", "", "-", "", "\t", "")

// MatchFold returns the key whose value or own text equals raw under Unicode case
// folding, ignoring spaces, underscores and hyphens.
func MatchFold[K ~string](raw string, labels map[K]string) (K, bool) {
	folder := cases.Fold()
	normalise := func(s string) string { return folder.String(enumSeparators.Replace(s)) }
	needle := normalise(raw)
	if needle == "" {
		var zero K
		return zero, false
	}
	for k, label := range labels {
		if normalise(string(k)) == needle || normalise(label) == needle {
			return k, true
		}
	}
	var zero K
	return zero, false
}
