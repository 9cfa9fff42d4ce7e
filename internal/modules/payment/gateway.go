package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/minhvo/storefront-backend/internal/modules/apperr"
)

// providerOK is the provider's success code in response envelopes.
const providerOK = "00"

// GatewayConfig holds the provider credentials and endpoints.
type GatewayConfig struct {
	BaseURL        string
	ClientID       string
	APIKey         string
	ChecksumSecret string
	ReturnURL      string
	CancelURL      string
	Timeout        time.Duration
}

// LinkRequest asks the provider for a hosted checkout link.
type LinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	BuyerName   string
	BuyerEmail  string
	BuyerPhone  string
}

// LinkResult is what the customer needs to pay: a checkout URL and the raw
// QR payload for in-app rendering.
type LinkResult struct {
	CheckoutURL string `json:"checkoutUrl"`
	QRCode      string `json:"qrCode"`
}

// Gateway is the outbound surface to the hosted checkout provider.
type Gateway interface {
	// CreatePaymentLink registers the payment and returns the checkout link.
	CreatePaymentLink(ctx context.Context, req LinkRequest) (*LinkResult, error)

	// GetStatus queries the provider for the current payment state.
	GetStatus(ctx context.Context, orderCode int64) (TxStatus, error)

	// Cancel voids an unpaid payment link so it can no longer be paid.
	Cancel(ctx context.Context, orderCode int64, reason string) error

	// Refund asks the provider to return captured money. A nil amount means
	// full refund. Returns the provider's refund identifier.
	Refund(ctx context.Context, orderCode int64, amount *int64, reason string) (string, error)
}

type httpGateway struct {
	cfg    GatewayConfig
	signer *Signer
	client *http.Client
}

// NewHTTPGateway creates the provider client. Requests are bounded by the
// configured timeout independent of the caller's context.
func NewHTTPGateway(cfg GatewayConfig) Gateway {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &httpGateway{
		cfg:    cfg,
		signer: NewSigner(cfg.ChecksumSecret),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// envelope is the provider's response wrapper.
type envelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

func (g *httpGateway) CreatePaymentLink(ctx context.Context, req LinkRequest) (*LinkResult, error) {
	signed := map[string]string{
		"amount":      strconv.FormatInt(req.Amount, 10),
		"cancelUrl":   g.cfg.CancelURL,
		"description": req.Description,
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"returnUrl":   g.cfg.ReturnURL,
	}
	body := map[string]interface{}{
		"orderCode":   req.OrderCode,
		"amount":      req.Amount,
		"description": req.Description,
		"buyerName":   req.BuyerName,
		"buyerEmail":  req.BuyerEmail,
		"buyerPhone":  req.BuyerPhone,
		"returnUrl":   g.cfg.ReturnURL,
		"cancelUrl":   g.cfg.CancelURL,
		"signature":   g.signer.Sign(signed),
	}

	data, err := g.post(ctx, "/v2/payment-requests", body)
	if err != nil {
		return nil, err
	}

	var result LinkResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, apperr.External(err, "decoding payment link response")
	}
	if result.CheckoutURL == "" {
		return nil, apperr.External(nil, "provider returned no checkout url")
	}
	return &result, nil
}

func (g *httpGateway) GetStatus(ctx context.Context, orderCode int64) (TxStatus, error) {
	data, err := g.get(ctx, fmt.Sprintf("/v2/payment-requests/%d", orderCode))
	if err != nil {
		return "", err
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", apperr.External(err, "decoding payment status response")
	}
	status, ok := providerStatusMap[payload.Status]
	if !ok {
		return "", apperr.External(nil, "provider reported unknown status %q", payload.Status)
	}
	return status, nil
}

func (g *httpGateway) Cancel(ctx context.Context, orderCode int64, reason string) error {
	_, err := g.post(ctx, fmt.Sprintf("/v2/payment-requests/%d/cancel", orderCode),
		map[string]interface{}{"cancellationReason": reason})
	return err
}

func (g *httpGateway) Refund(ctx context.Context, orderCode int64, amount *int64, reason string) (string, error) {
	signed := map[string]string{
		"orderCode": strconv.FormatInt(orderCode, 10),
		"reason":    reason,
	}
	body := map[string]interface{}{
		"orderCode": orderCode,
		"reason":    reason,
	}
	if amount != nil {
		signed["amount"] = strconv.FormatInt(*amount, 10)
		body["amount"] = *amount
	}
	body["signature"] = g.signer.Sign(signed)

	data, err := g.post(ctx, fmt.Sprintf("/v2/payment-requests/%d/refund", orderCode), body)
	if err != nil {
		return "", err
	}

	var payload struct {
		RefundID string `json:"refundId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", apperr.External(err, "decoding refund response")
	}
	return payload.RefundID, nil
}

func (g *httpGateway) post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

func (g *httpGateway) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return g.do(req)
}

func (g *httpGateway) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("x-client-id", g.cfg.ClientID)
	req.Header.Set("x-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, apperr.External(err, "payment provider unreachable")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, apperr.External(err, "payment provider returned malformed response (http %d)", resp.StatusCode)
	}
	if env.Code != providerOK {
		return nil, apperr.External(nil, "payment provider rejected request: %s (%s)", env.Desc, env.Code)
	}
	return env.Data, nil
}
