package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RefundRecord is one refund attempt against a payment.
type RefundRecord struct {
	RefundID   string    `json:"refund_id"`
	Amount     float64   `json:"amount"`
	Reason     string    `json:"reason"`
	Status     string    `json:"status"` // pending, completed, failed
	RefundedAt time.Time `json:"refunded_at"`
}

// WebhookRecord is one received gateway webhook (append-only audit trail).
type WebhookRecord struct {
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// ErrorRecord is one logged gateway or reconciliation error.
type ErrorRecord struct {
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Payment tracks one external invoice lifecycle at the gateway.
// MerchantRefNum is globally unique and immutable; the Payment drives the
// linked Enrollment's payment status, never the other way around.
type Payment struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UserID               uint           `gorm:"index;not null" json:"user_id"`
	CourseID             *uint          `gorm:"index" json:"course_id,omitempty"`
	PackageID            *uint          `gorm:"index" json:"package_id,omitempty"`
	Amount               float64        `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency             string         `gorm:"size:3;default:'EGP'" json:"currency"`
	MerchantRefNum       string         `gorm:"uniqueIndex;size:100;not null" json:"merchant_ref_num"`
	InvoiceID            string         `gorm:"size:50;index" json:"invoice_id"`
	PaymentURL           string         `gorm:"size:500" json:"payment_url"`
	Status               string         `gorm:"size:20;default:'pending';index" json:"status"`
	GatewayPaymentStatus string         `gorm:"size:20;default:'pending'" json:"gateway_payment_status"`
	GatewayInvoiceStatus string         `gorm:"size:20;default:'pending'" json:"gateway_invoice_status"`
	TransactionID        string         `gorm:"size:100" json:"transaction_id,omitempty"`
	PaidAt               *time.Time     `json:"paid_at"`
	CustomerName         string         `gorm:"size:100" json:"customer_name"`
	CustomerEmail        string         `gorm:"size:100" json:"customer_email"`
	CustomerMobile       string         `gorm:"size:20" json:"customer_mobile"`
	Refunds              datatypes.JSONType[[]RefundRecord]  `json:"refunds"`
	WebhookLog           datatypes.JSONType[[]WebhookRecord] `json:"-"`
	ErrorLog             datatypes.JSONType[[]ErrorRecord]   `json:"-"`
	Metadata             datatypes.JSONMap                   `json:"metadata,omitempty"`
	CreatedAt            time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}

// TotalRefunded sums completed refunds.
func (p *Payment) TotalRefunded() float64 {
	var total float64
	for _, r := range p.Refunds.Data() {
		if r.Status == "completed" {
			total += r.Amount
		}
	}
	return total
}

// NetAmount is the paid amount minus completed refunds.
func (p *Payment) NetAmount() float64 {
	return p.Amount - p.TotalRefunded()
}
