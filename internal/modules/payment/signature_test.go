package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSigner_CanonicalOrdering(t *testing.T) {
	s := NewSigner("secret")

	// Field insertion order must not matter.
	a := s.Sign(map[string]string{"amount": "1100000", "orderCode": "42", "status": "PAID"})
	b := s.Sign(map[string]string{"status": "PAID", "orderCode": "42", "amount": "1100000"})
	assert.Equal(t, a, b)
}

func TestSigner_VerifyRoundTrip(t *testing.T) {
	s := NewSigner("secret")
	fields := map[string]string{"amount": "1100000", "orderCode": "42"}

	sig := s.Sign(fields)
	assert.True(t, s.Verify(fields, sig))
}

func TestSigner_VerifyRejectsTampering(t *testing.T) {
	s := NewSigner("secret")
	fields := map[string]string{"amount": "1100000", "orderCode": "42"}
	sig := s.Sign(fields)

	fields["amount"] = "1"
	assert.False(t, s.Verify(fields, sig))
}

func TestSigner_VerifyRejectsWrongSecret(t *testing.T) {
	fields := map[string]string{"orderCode": "42"}
	sig := NewSigner("secret").Sign(fields)

	assert.False(t, NewSigner("other").Verify(fields, sig))
}

func TestCanonical(t *testing.T) {
	got := canonical(map[string]string{
		"orderCode": "42",
		"amount":    "1100000",
		"status":    "PAID",
		"reference": "",
	})
	assert.Equal(t, "amount=1100000&orderCode=42&reference=&status=PAID", got)
}
