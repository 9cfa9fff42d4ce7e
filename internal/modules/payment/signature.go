package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Signer computes and verifies the provider's HMAC-SHA256 request signatures.
// The canonical form is the alphabetically sorted key=value pairs joined
// with "&", hashed with the shared checksum secret, hex-encoded.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// canonical builds the sorted key=value concatenation the provider signs.
func canonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+fields[k])
	}
	return strings.Join(pairs, "&")
}

// Sign returns the hex HMAC-SHA256 over the canonical form of fields.
func (s *Signer) Sign(fields map[string]string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(canonical(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig matches the expected signature for fields.
// Comparison is constant-time.
func (s *Signer) Verify(fields map[string]string, sig string) bool {
	expected := s.Sign(fields)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// webhookFields flattens the signed webhook body into canonical string form.
// Numbers render without exponent so both sides hash identical bytes.
func webhookFields(d WebhookData) map[string]string {
	return map[string]string{
		"orderCode": fmt.Sprintf("%d", d.OrderCode),
		"amount":    fmt.Sprintf("%d", d.Amount),
		"status":    d.Status,
		"reference": d.Reference,
	}
}
