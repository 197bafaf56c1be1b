package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/config"
	"edhub/internal/core/domain"
)

// PaymentService bridges the payment gateway and the enrollment engine.
// A Payment row exists only once the gateway accepted the invoice, and the
// Payment always drives the linked Enrollment's status — reconciliation
// (status polling and webhooks) converges both to the gateway's truth.
type PaymentService struct {
	paymentRepo    repositories.PaymentRepository
	userRepo       repositories.UserRepository
	courseRepo     repositories.CourseRepository
	packageRepo    repositories.PackageRepository
	enrollmentSvc  *EnrollmentService
	gateway        *FawaterakClient
	notificationSv PaymentNotifier
	frontend       config.FrontendConfig
}

// PaymentNotifier sends customer-facing mail for payment outcomes.
// Satisfied by NotificationService.
type PaymentNotifier interface {
	SendEnrollmentActivated(name, email, item string, amount float64)
	SendPaymentFailed(name, email, item string)
	SendRefundProcessed(name, email, item string, amount float64, full bool)
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	paymentRepo repositories.PaymentRepository,
	userRepo repositories.UserRepository,
	courseRepo repositories.CourseRepository,
	packageRepo repositories.PackageRepository,
	enrollmentSvc *EnrollmentService,
	gateway *FawaterakClient,
	notificationSv PaymentNotifier,
	frontend config.FrontendConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo:    paymentRepo,
		userRepo:       userRepo,
		courseRepo:     courseRepo,
		packageRepo:    packageRepo,
		enrollmentSvc:  enrollmentSvc,
		gateway:        gateway,
		notificationSv: notificationSv,
		frontend:       frontend,
	}
}

// CreateInvoiceInput selects exactly one purchase target
type CreateInvoiceInput struct {
	UserID         uint
	CourseID       *uint    `json:"course_id"`
	PackageID      *uint    `json:"package_id"`
	PaymentMethods []string `json:"payment_methods"`
}

// CreateInvoiceResult is returned to the client so it can redirect the
// customer to the hosted payment page
type CreateInvoiceResult struct {
	PaymentID      uint    `json:"payment_id"`
	PaymentURL     string  `json:"payment_url"`
	InvoiceID      string  `json:"invoice_id"`
	MerchantRefNum string  `json:"merchant_ref_num"`
	Amount         float64 `json:"amount"`
	ItemName       string  `json:"item_name"`
}

// WebhookPayload is the body Fawaterak posts on payment events
type WebhookPayload struct {
	MerchantRefNum string `json:"merchantRefNum"`
	InvoiceID      string `json:"invoice_id"`
	InvoiceStatus  string `json:"invoice_status"`
	PaymentStatus  string `json:"payment_status"`
	TransactionID  string `json:"transaction_id"`
}

// RefundInput is the admin refund request
type RefundInput struct {
	Amount float64 `json:"refund_amount" validate:"omitempty,gt=0"`
	Reason string  `json:"refund_reason" validate:"omitempty,max=500"`
}

// RefundOutcome reports what the refund did to the payment
type RefundOutcome struct {
	RefundID      string  `json:"refund_id"`
	Amount        float64 `json:"amount"`
	TotalRefunded float64 `json:"total_refunded"`
	Status        string  `json:"status"`
}

// CreateInvoice registers an invoice with the gateway for a course or
// package purchase. The Payment row is persisted only after the gateway
// accepted the invoice; if the gateway call fails nothing is written, so
// no orphan pending payments accumulate. Double purchase of an already
// accessible target is rejected up front.
func (s *PaymentService) CreateInvoice(ctx context.Context, input *CreateInvoiceInput) (*CreateInvoiceResult, error) {
	if (input.CourseID == nil) == (input.PackageID == nil) {
		return nil, fmt.Errorf("%w: exactly one of course_id or package_id is required", domain.ErrInvalidInput)
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, &domain.BannedError{Reason: user.BanReason}
	}

	var (
		amount   float64
		itemName string
		refKind  string
		refID    uint
	)

	if input.CourseID != nil {
		course, err := s.courseRepo.GetByID(ctx, *input.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrCourseNotFound
			}
			return nil, err
		}
		if course.IsFree {
			return nil, fmt.Errorf("%w: course is free, enroll directly", domain.ErrInvalidInput)
		}
		access, err := s.enrollmentSvc.ResolveCourseAccess(ctx, user.ID, course.ID)
		if err != nil {
			return nil, err
		}
		if access.Granted {
			return nil, domain.ErrDuplicateEnrollment
		}
		amount, itemName, refKind, refID = course.Price, course.Name, "c", course.ID
	} else {
		pkg, err := s.packageRepo.GetByID(ctx, *input.PackageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrPackageNotFound
			}
			return nil, err
		}
		owned, err := s.enrollmentSvc.HasPackageAccess(ctx, user.ID, pkg.ID)
		if err != nil {
			return nil, err
		}
		if owned {
			return nil, domain.ErrDuplicateEnrollment
		}
		amount, itemName, refKind, refID = pkg.Price, pkg.Name, "p", pkg.ID
	}

	merchantRefNum := fmt.Sprintf("EH_%s%d_%d_%d", refKind, refID, user.ID, time.Now().UnixNano())

	invoice, err := s.gateway.CreateInvoice(ctx, &InvoiceRequest{
		CartTotal: amount,
		Currency:  "EGP",
		Customer: InvoiceCustomer{
			Name:   user.Name,
			Email:  user.Email,
			Mobile: user.PhoneNumber,
		},
		RedirectionURLs: RedirectionURLs{
			SuccessURL: s.frontend.SuccessURL + "?ref=" + merchantRefNum,
			FailURL:    s.frontend.FailURL + "?ref=" + merchantRefNum,
			PendingURL: s.frontend.PendingURL + "?ref=" + merchantRefNum,
		},
		PaymentMethods: input.PaymentMethods,
		CartItems: []CartItem{
			{Name: itemName, Price: amount, Quantity: 1},
		},
		MerchantRefNum: merchantRefNum,
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		UserID:         user.ID,
		CourseID:       input.CourseID,
		PackageID:      input.PackageID,
		Amount:         amount,
		Currency:       "EGP",
		MerchantRefNum: merchantRefNum,
		InvoiceID:      invoice.InvoiceID,
		PaymentURL:     invoice.PaymentURL,
		Status:         string(domain.PaymentPending),
		CustomerName:   user.Name,
		CustomerEmail:  user.Email,
		CustomerMobile: user.PhoneNumber,
		Metadata: datatypes.JSONMap{
			"item_name":   itemName,
			"invoice_key": invoice.InvoiceKey,
		},
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	return &CreateInvoiceResult{
		PaymentID:      payment.ID,
		PaymentURL:     invoice.PaymentURL,
		InvoiceID:      invoice.InvoiceID,
		MerchantRefNum: merchantRefNum,
		Amount:         amount,
		ItemName:       itemName,
	}, nil
}

// CheckStatus polls the gateway for one payment and converges the local
// record (and its enrollment) on the answer. Students may only poll their
// own payments. Safe to call any number of times.
func (s *PaymentService) CheckStatus(ctx context.Context, merchantRefNum string, requesterID uint, requesterRole domain.Role) (*models.Payment, error) {
	payment, err := s.getByMerchantRefNum(ctx, merchantRefNum)
	if err != nil {
		return nil, err
	}
	if payment.UserID != requesterID && requesterRole != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}

	status, err := s.gateway.GetInvoiceStatus(ctx, payment.InvoiceID)
	if err != nil {
		// The stored record stays authoritative when the gateway is down.
		return payment, err
	}

	if err := s.applyGatewayStatus(ctx, payment, status.PaymentStatus, status.InvoiceStatus, status.TransactionID); err != nil {
		return nil, err
	}
	return payment, nil
}

// HandleWebhook processes a gateway notification. The signature is checked
// before anything else; every accepted delivery is appended to the payment's
// webhook log even when it changes nothing, and status application is
// idempotent so gateway retries are harmless.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return domain.ErrInvalidSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: malformed webhook body", domain.ErrInvalidInput)
	}
	if payload.MerchantRefNum == "" {
		return fmt.Errorf("%w: webhook missing merchantRefNum", domain.ErrInvalidInput)
	}

	payment, err := s.getByMerchantRefNum(ctx, payload.MerchantRefNum)
	if err != nil {
		return err
	}

	webhookLog := payment.WebhookLog.Data()
	webhookLog = append(webhookLog, models.WebhookRecord{
		Payload:    string(body),
		ReceivedAt: time.Now(),
	})
	if err := s.paymentRepo.UpdateFields(ctx, payment.ID, map[string]interface{}{
		"webhook_log": datatypes.NewJSONType(webhookLog),
	}); err != nil {
		return err
	}

	return s.applyGatewayStatus(ctx, payment, payload.PaymentStatus, payload.InvoiceStatus, payload.TransactionID)
}

// applyGatewayStatus maps the gateway's payment status onto the local
// record and pushes the outcome into the enrollment engine. Re-applying
// the current status is a no-op.
func (s *PaymentService) applyGatewayStatus(ctx context.Context, payment *models.Payment, gatewayPayment, gatewayInvoice, transactionID string) error {
	newStatus := mapGatewayStatus(gatewayPayment)

	fields := map[string]interface{}{
		"gateway_payment_status": gatewayPayment,
		"gateway_invoice_status": gatewayInvoice,
	}
	if transactionID != "" {
		fields["transaction_id"] = transactionID
	}

	transitioned := payment.Status != string(newStatus) && payment.Status == string(domain.PaymentPending)
	if transitioned {
		fields["status"] = string(newStatus)
		if newStatus == domain.PaymentPaid {
			now := time.Now()
			fields["paid_at"] = &now
		}
	}

	if err := s.paymentRepo.UpdateFields(ctx, payment.ID, fields); err != nil {
		return err
	}

	if transitioned {
		payment.Status = string(newStatus)
	}

	// Enrollment convergence runs on every delivery (it is idempotent),
	// but mail goes out only on the actual pending transition so webhook
	// retries do not spam the customer.
	switch newStatus {
	case domain.PaymentPaid:
		enrollment, err := s.enrollmentSvc.ActivateForPayment(ctx, payment)
		if err != nil {
			s.recordError(ctx, payment, fmt.Sprintf("enrollment activation failed: %v", err))
			return err
		}
		if transitioned {
			log.Printf("✅ Enrollment %d activated for payment %s", enrollment.ID, payment.MerchantRefNum)
			s.notificationSv.SendEnrollmentActivated(payment.CustomerName, payment.CustomerEmail, s.itemName(payment), payment.Amount)
		}
	case domain.PaymentFailed:
		if err := s.enrollmentSvc.MarkFailedForPayment(ctx, payment); err != nil {
			s.recordError(ctx, payment, fmt.Sprintf("marking enrollment failed errored: %v", err))
			return err
		}
		if transitioned {
			s.notificationSv.SendPaymentFailed(payment.CustomerName, payment.CustomerEmail, s.itemName(payment))
		}
	}
	return nil
}

// Refund issues a refund through the gateway and records it on the
// payment. A zero amount means refund the full remaining balance. When
// the cumulative refunds reach the paid amount the payment flips to
// refunded and access is revoked on the enrollment; otherwise it becomes
// partially refunded and access survives.
func (s *PaymentService) Refund(ctx context.Context, paymentID uint, input *RefundInput) (*RefundOutcome, error) {
	payment, err := s.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	current := domain.PaymentStatus(payment.Status)
	if current != domain.PaymentPaid && current != domain.PaymentPartiallyRefunded {
		return nil, domain.ErrPaymentNotRefundable
	}

	remaining := payment.Amount - payment.TotalRefunded()
	amount := input.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount > remaining {
		return nil, domain.ErrRefundExceedsBalance
	}

	result, err := s.gateway.Refund(ctx, &RefundRequest{
		MerchantRefNum: payment.MerchantRefNum,
		Amount:         amount,
		Reason:         input.Reason,
	})
	if err != nil {
		s.recordError(ctx, payment, fmt.Sprintf("refund failed: %v", err))
		return nil, err
	}

	refundID := result.RefundID
	if refundID == "" {
		refundID = uuid.NewString()
	}

	refunds := payment.Refunds.Data()
	refunds = append(refunds, models.RefundRecord{
		RefundID:   refundID,
		Amount:     amount,
		Reason:     input.Reason,
		Status:     "completed",
		RefundedAt: time.Now(),
	})

	totalRefunded := 0.0
	for _, r := range refunds {
		if r.Status == "completed" {
			totalRefunded += r.Amount
		}
	}

	newStatus := domain.PaymentPartiallyRefunded
	if totalRefunded >= payment.Amount {
		newStatus = domain.PaymentRefunded
	}

	if err := s.paymentRepo.UpdateFields(ctx, payment.ID, map[string]interface{}{
		"refunds": datatypes.NewJSONType(refunds),
		"status":  string(newStatus),
	}); err != nil {
		return nil, err
	}

	full := newStatus == domain.PaymentRefunded
	if full {
		if err := s.enrollmentSvc.MirrorRefundForPayment(ctx, payment); err != nil {
			s.recordError(ctx, payment, fmt.Sprintf("refund mirror failed: %v", err))
			return nil, err
		}
	}

	s.notificationSv.SendRefundProcessed(payment.CustomerName, payment.CustomerEmail, s.itemName(payment), amount, full)

	return &RefundOutcome{
		RefundID:      refundID,
		Amount:        amount,
		TotalRefunded: totalRefunded,
		Status:        string(newStatus),
	}, nil
}

// GetByID returns one payment
func (s *PaymentService) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListUserPayments lists one student's payments
func (s *PaymentService) ListUserPayments(ctx context.Context, userID uint, filter repositories.PaymentFilter) ([]*models.Payment, int64, error) {
	filter.UserID = userID
	return s.paymentRepo.List(ctx, filter)
}

// List lists payments for the admin view
func (s *PaymentService) List(ctx context.Context, filter repositories.PaymentFilter) ([]*models.Payment, int64, error) {
	return s.paymentRepo.List(ctx, filter)
}

func (s *PaymentService) getByMerchantRefNum(ctx context.Context, merchantRefNum string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByMerchantRefNum(ctx, merchantRefNum)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) itemName(payment *models.Payment) string {
	if name, ok := payment.Metadata["item_name"].(string); ok {
		return name
	}
	return "your purchase"
}

func (s *PaymentService) recordError(ctx context.Context, payment *models.Payment, msg string) {
	log.Printf("⚠️ Payment %s: %s", payment.MerchantRefNum, msg)
	errorLog := payment.ErrorLog.Data()
	errorLog = append(errorLog, models.ErrorRecord{Error: msg, OccurredAt: time.Now()})
	if err := s.paymentRepo.UpdateFields(ctx, payment.ID, map[string]interface{}{
		"error_log": datatypes.NewJSONType(errorLog),
	}); err != nil {
		log.Printf("⚠️ Payment %s: failed to persist error log: %v", payment.MerchantRefNum, err)
	}
}

func mapGatewayStatus(gatewayStatus string) domain.PaymentStatus {
	switch gatewayStatus {
	case "paid", "success":
		return domain.PaymentPaid
	case "failed", "expired", "cancelled":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}
