package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"edhub/internal/config"
	"edhub/internal/core/domain"
)

// FawaterakClient talks to the Fawaterak invoicing API. All calls carry
// the configured bearer key and a hard timeout; a timed-out or unreachable
// gateway surfaces as domain.ErrGatewayUnavailable so callers can refuse
// to guess what the gateway decided.
type FawaterakClient struct {
	client        *resty.Client
	webhookSecret string
}

// NewFawaterakClient creates a gateway client. Config loading already
// refuses to start in prod without credentials; in dev a credential-less
// client simply fails at call time.
func NewFawaterakClient(cfg config.FawaterakConfig) *FawaterakClient {
	if cfg.APIKey == "" || cfg.WebhookSecret == "" {
		log.Println("⚠️ Fawaterak credentials not set, gateway calls will fail")
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSecs) * time.Second).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	return &FawaterakClient{
		client:        client,
		webhookSecret: cfg.WebhookSecret,
	}
}

// InvoiceCustomer identifies the payer on the hosted invoice page
type InvoiceCustomer struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// RedirectionURLs tell the gateway where to send the customer back
type RedirectionURLs struct {
	SuccessURL string `json:"successUrl"`
	FailURL    string `json:"failUrl"`
	PendingURL string `json:"pendingUrl"`
}

// CartItem is one line on the invoice
type CartItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// InvoiceRequest is the createInvoiceLink payload
type InvoiceRequest struct {
	CartTotal       float64         `json:"cartTotal"`
	Currency        string          `json:"currency"`
	Customer        InvoiceCustomer `json:"customer"`
	RedirectionURLs RedirectionURLs `json:"redirectionUrls"`
	PaymentMethods  []string        `json:"paymentMethods,omitempty"`
	CartItems       []CartItem      `json:"cartItems"`
	MerchantRefNum  string          `json:"merchantRefNum"`
}

// InvoiceResult is what callers need from a created invoice
type InvoiceResult struct {
	InvoiceID  string `json:"invoice_id"`
	InvoiceKey string `json:"invoice_key"`
	PaymentURL string `json:"payment_url"`
}

// StatusResult is the gateway's view of one invoice
type StatusResult struct {
	InvoiceStatus string                 `json:"invoice_status"`
	PaymentStatus string                 `json:"payment_status"`
	TransactionID string                 `json:"transaction_id"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// RefundRequest asks the gateway to return money on a paid invoice
type RefundRequest struct {
	MerchantRefNum string  `json:"merchantRefNum"`
	Amount         float64 `json:"refundAmount"`
	Reason         string  `json:"refundReason,omitempty"`
}

// RefundResult reports the gateway-issued refund reference
type RefundResult struct {
	RefundID string `json:"refund_id"`
	Status   string `json:"status"`
}

type invoiceEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		InvoiceID  interface{} `json:"invoiceId"`
		InvoiceKey string      `json:"invoiceKey"`
		URL        string      `json:"url"`
	} `json:"data"`
	Message string `json:"message"`
}

type statusEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		InvoiceStatus string                 `json:"invoice_status"`
		PaymentStatus string                 `json:"payment_status"`
		TransactionID string                 `json:"transaction_id"`
		PaymentData   map[string]interface{} `json:"payment_data"`
	} `json:"data"`
	Message string `json:"message"`
}

type refundEnvelope struct {
	Status string `json:"status"`
	Data   struct {
		RefundID string `json:"refundId"`
		Status   string `json:"status"`
	} `json:"data"`
	Message string `json:"message"`
}

// CreateInvoice registers an invoice with the gateway and returns the
// hosted payment URL
func (f *FawaterakClient) CreateInvoice(ctx context.Context, req *InvoiceRequest) (*InvoiceResult, error) {
	var envelope invoiceEnvelope

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&envelope).
		SetError(&envelope).
		ForceContentType("application/json").
		Post("/createInvoiceLink")
	if err != nil {
		return nil, f.transportError(err)
	}
	if resp.IsError() || envelope.Status != "success" {
		return nil, fmt.Errorf("%w: createInvoiceLink returned %d: %s",
			domain.ErrGatewayError, resp.StatusCode(), envelope.Message)
	}

	return &InvoiceResult{
		InvoiceID:  formatInvoiceID(envelope.Data.InvoiceID),
		InvoiceKey: envelope.Data.InvoiceKey,
		PaymentURL: envelope.Data.URL,
	}, nil
}

// formatInvoiceID normalizes the gateway's invoiceId, which arrives as a
// JSON number or a string depending on the endpoint. A float64 must not go
// through %v: large IDs would render in scientific notation and corrupt
// every later getInvoiceData path.
func formatInvoiceID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetInvoiceStatus fetches the current gateway-side status of an invoice
func (f *FawaterakClient) GetInvoiceStatus(ctx context.Context, invoiceID string) (*StatusResult, error) {
	var envelope statusEnvelope

	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&envelope).
		SetError(&envelope).
		ForceContentType("application/json").
		Get("/getInvoiceData/" + invoiceID)
	if err != nil {
		return nil, f.transportError(err)
	}
	if resp.IsError() || envelope.Status != "success" {
		return nil, fmt.Errorf("%w: getInvoiceData returned %d: %s",
			domain.ErrGatewayError, resp.StatusCode(), envelope.Message)
	}

	return &StatusResult{
		InvoiceStatus: envelope.Data.InvoiceStatus,
		PaymentStatus: envelope.Data.PaymentStatus,
		TransactionID: envelope.Data.TransactionID,
		Raw:           envelope.Data.PaymentData,
	}, nil
}

// Refund asks the gateway to return money on a paid invoice
func (f *FawaterakClient) Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error) {
	var envelope refundEnvelope

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&envelope).
		SetError(&envelope).
		ForceContentType("application/json").
		Post("/refund")
	if err != nil {
		return nil, f.transportError(err)
	}
	if resp.IsError() || envelope.Status != "success" {
		return nil, fmt.Errorf("%w: refund returned %d: %s",
			domain.ErrGatewayError, resp.StatusCode(), envelope.Message)
	}

	return &RefundResult{
		RefundID: envelope.Data.RefundID,
		Status:   envelope.Data.Status,
	}, nil
}

// VerifyWebhookSignature checks the x-fawaterak-signature header against
// an HMAC-SHA256 of the raw request body. Comparison is constant time.
func (f *FawaterakClient) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(f.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// transportError covers timeouts, DNS failures and refused connections:
// anything where the gateway's decision is unknown.
func (f *FawaterakClient) transportError(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}
