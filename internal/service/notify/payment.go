package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// PaymentSubject is the subject of the payment notification.
const PaymentSubject = "New Payment Submitted"

var paymentHTML = template.Must(template.New("payment").Parse(
	`<p>Amount: ${{.Amount}}</p><p>Proof: <a href="{{.ProofURL}}">View Image</a></p>`))

// PaymentMessage composes the notification for a submitted payment proof.
// amount is the decimal amount as entered, e.g. "12.50".
func PaymentMessage(to, amount, proofURL string) (Message, error) {
	var html bytes.Buffer
	if err := paymentHTML.Execute(&html, struct{ Amount, ProofURL string }{amount, proofURL}); err != nil {
		return Message{}, fmt.Errorf("render payment email: %w", err)
	}
	return Message{
		To:      to,
		Subject: PaymentSubject,
		Text:    fmt.Sprintf("Amount: $%s\nProof: %s\n", amount, proofURL),
		HTML:    html.String(),
	}, nil
}
