package domain

import "time"

// Payment records a submitted payment proof. Card data never reaches this struct;
// only the provider reference and the last four digits are kept.
type Payment struct {
	ID          string
	UserID      string
	Email       string
	AmountCents int64
	ProofKey    string
	ProofURL    string
	CardToken   string
	CardLast4   string
	CreatedAt   time.Time
}

// CardDetails is the raw card input. It is handed to a payment provider and dropped.
type CardDetails struct {
	Number string
	Month  string
	CVV    string
}

// Empty reports whether no card field was supplied.
func (c CardDetails) Empty() bool {
	return c.Number == "" && c.Month == "" && c.CVV == ""
}

// Last4 returns the final four digits of the card number, or "" if it is too short.
func (c CardDetails) Last4() string {
	digits := make([]byte, 0, len(c.Number))
	for i := 0; i < len(c.Number); i++ {
		if c.Number[i] >= '0' && c.Number[i] <= '9' {
			digits = append(digits, c.Number[i])
		}
	}
	if len(digits) < 4 {
		return ""
	}
	return string(digits[len(digits)-4:])
}
