package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"edhub/internal/adapters/persistence/models"
	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/config"
	"edhub/internal/core/domain"
)

const testWebhookSecret = "test_webhook_secret"

// gatewayStub fakes the Fawaterak API for one test.
type gatewayStub struct {
	srv *httptest.Server

	failCreate    bool
	paymentStatus string // answer for getInvoiceData
	refundID      string
}

func newGatewayStub(t *testing.T) *gatewayStub {
	t.Helper()

	stub := &gatewayStub{paymentStatus: "pending", refundID: "rf_test_1"}
	mux := http.NewServeMux()

	mux.HandleFunc("/createInvoiceLink", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if stub.failCreate {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "error", "message": "gateway exploded",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"invoiceId":  1234567,
				"invoiceKey": "inv_key_abc",
				"url":        "https://pay.example.com/inv/1234567",
			},
		})
	})

	mux.HandleFunc("/getInvoiceData/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"invoice_status": "live",
				"payment_status": stub.paymentStatus,
				"transaction_id": "trx_987",
			},
		})
	})

	mux.HandleFunc("/refund", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"refundId": stub.refundID,
				"status":   "completed",
			},
		})
	})

	stub.srv = httptest.NewServer(mux)
	t.Cleanup(stub.srv.Close)
	return stub
}

func newPaymentTestStack(t *testing.T, db *gorm.DB, gatewayURL string) (*PaymentService, *EnrollmentService) {
	t.Helper()

	enrollmentSvc := newEnrollmentService(db)
	gateway := NewFawaterakClient(config.FawaterakConfig{
		BaseURL:       gatewayURL,
		APIKey:        "test_api_key",
		WebhookSecret: testWebhookSecret,
		TimeoutSecs:   5,
	})
	paymentSvc := NewPaymentService(
		repositories.NewPaymentRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewCourseRepository(db),
		repositories.NewPackageRepository(db),
		enrollmentSvc,
		gateway,
		NewNotificationService(config.EmailConfig{}),
		config.FrontendConfig{
			SuccessURL: "https://edhub.test/payment/success",
			FailURL:    "https://edhub.test/payment/failed",
			PendingURL: "https://edhub.test/payment/pending",
		},
	)
	return paymentSvc, enrollmentSvc
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T, merchantRefNum, paymentStatus string) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]interface{}{
		"merchantRefNum": merchantRefNum,
		"invoice_id":     "1234567",
		"invoice_status": "live",
		"payment_status": paymentStatus,
		"transaction_id": "trx_987",
	})
	require.NoError(t, err)
	return body
}

func TestCreateInvoice_PersistsPaymentOnGatewaySuccess(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, _ := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "invoice@test.com")
	course := seedCourse(t, db, "Calculus", 750)

	courseID := course.ID
	result, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID:   student.ID,
		CourseID: &courseID,
	})
	require.NoError(t, err)

	assert.Equal(t, 750.0, result.Amount)
	assert.Equal(t, "Calculus", result.ItemName)
	assert.Equal(t, "1234567", result.InvoiceID)
	assert.Equal(t, "https://pay.example.com/inv/1234567", result.PaymentURL)
	assert.True(t, strings.HasPrefix(result.MerchantRefNum, fmt.Sprintf("EH_c%d_%d_", course.ID, student.ID)))

	payment, err := svc.GetByID(ctx, result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPending), payment.Status)
	assert.Equal(t, student.PhoneNumber, payment.CustomerMobile)
	assert.Equal(t, "Calculus", payment.Metadata["item_name"])
}

func TestCreateInvoice_NothingPersistedOnGatewayFailure(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	stub.failCreate = true
	svc, _ := newPaymentTestStack(t, db, stub.srv.URL)

	student := seedStudent(t, db, "ghost@test.com")
	course := seedCourse(t, db, "Statistics", 500)

	courseID := course.ID
	_, err := svc.CreateInvoice(context.Background(), &CreateInvoiceInput{
		UserID:   student.ID,
		CourseID: &courseID,
	})
	assert.ErrorIs(t, err, domain.ErrGatewayError)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count, "no orphan payments after a rejected invoice")
}

func TestCreateInvoice_InputValidation(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, enrollmentSvc := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "validation@test.com")
	course := seedCourse(t, db, "Paid", 500)
	free := seedFreeCourse(t, db, "Free")
	c2 := seedCourse(t, db, "Other", 200)
	pkg := seedPackage(t, db, "Pair", 600, course, c2)
	courseID, freeID, pkgID := course.ID, free.ID, pkg.ID

	t.Run("both targets rejected", func(t *testing.T) {
		_, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
			UserID: student.ID, CourseID: &courseID, PackageID: &pkgID,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no target rejected", func(t *testing.T) {
		_, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{UserID: student.ID})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("free course rejected", func(t *testing.T) {
		_, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
			UserID: student.ID, CourseID: &freeID,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("already accessible course rejected", func(t *testing.T) {
		enrollment, err := enrollmentSvc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
			StudentID: student.ID, CourseID: course.ID, PhoneNumber: "01001234567",
		})
		require.NoError(t, err)
		_, err = enrollmentSvc.UpdatePaymentStatus(ctx, enrollment.ID, domain.PaymentPaid, domain.RoleAdmin)
		require.NoError(t, err)

		_, err = svc.CreateInvoice(ctx, &CreateInvoiceInput{
			UserID: student.ID, CourseID: &courseID,
		})
		assert.ErrorIs(t, err, domain.ErrDuplicateEnrollment)
	})
}

func TestHandleWebhook_PaidActivatesEnrollment(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, enrollmentSvc := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "webhook@test.com")
	course := seedCourse(t, db, "Mechanics", 640)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	body := webhookBody(t, invoice.MerchantRefNum, "paid")
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))

	payment, err := svc.GetByID(ctx, invoice.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPaid), payment.Status)
	assert.NotNil(t, payment.PaidAt)
	assert.Equal(t, "trx_987", payment.TransactionID)
	assert.Len(t, payment.WebhookLog.Data(), 1)

	access, err := enrollmentSvc.ResolveCourseAccess(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, access.Granted)

	// Gateway retries must be harmless, but still land in the audit log.
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))
	payment, err = svc.GetByID(ctx, invoice.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPaid), payment.Status)
	assert.Len(t, payment.WebhookLog.Data(), 2)
}

type mailRecorder struct {
	activated int
	failed    int
	refunded  int
}

func (m *mailRecorder) SendEnrollmentActivated(name, email, item string, amount float64) {
	m.activated++
}

func (m *mailRecorder) SendPaymentFailed(name, email, item string) {
	m.failed++
}

func (m *mailRecorder) SendRefundProcessed(name, email, item string, amount float64, full bool) {
	m.refunded++
}

func TestHandleWebhook_RedeliverySendsNoSecondMail(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)

	enrollmentSvc := newEnrollmentService(db)
	gateway := NewFawaterakClient(config.FawaterakConfig{
		BaseURL:       stub.srv.URL,
		APIKey:        "test_api_key",
		WebhookSecret: testWebhookSecret,
		TimeoutSecs:   5,
	})
	mail := &mailRecorder{}
	svc := NewPaymentService(
		repositories.NewPaymentRepository(db),
		repositories.NewUserRepository(db),
		repositories.NewCourseRepository(db),
		repositories.NewPackageRepository(db),
		enrollmentSvc,
		gateway,
		mail,
		config.FrontendConfig{},
	)
	ctx := context.Background()

	student := seedStudent(t, db, "redelivery@test.com")
	course := seedCourse(t, db, "Statistics", 400)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID:   student.ID,
		CourseID: &courseID,
	})
	require.NoError(t, err)

	body := webhookBody(t, invoice.MerchantRefNum, "paid")
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))
	assert.Equal(t, 1, mail.activated)

	// Gateways retry deliveries they believe were lost. The payment is
	// already paid, so the retry must converge silently.
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))
	assert.Equal(t, 1, mail.activated)
	assert.Equal(t, 0, mail.failed)

	other := seedStudent(t, db, "redelivery2@test.com")
	declined, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID:   other.ID,
		CourseID: &courseID,
	})
	require.NoError(t, err)

	failedBody := webhookBody(t, declined.MerchantRefNum, "failed")
	require.NoError(t, svc.HandleWebhook(ctx, failedBody, signWebhook(failedBody)))
	require.NoError(t, svc.HandleWebhook(ctx, failedBody, signWebhook(failedBody)))
	assert.Equal(t, 1, mail.failed)
	assert.Equal(t, 1, mail.activated)
}

func TestHandleWebhook_FailedMarksEnrollmentFailed(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, enrollmentSvc := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "declined@test.com")
	course := seedCourse(t, db, "Optics", 380)

	enrollment, err := enrollmentSvc.CreateDirectEnrollment(ctx, &DirectEnrollmentInput{
		StudentID: student.ID, CourseID: course.ID, PhoneNumber: "01001234567",
	})
	require.NoError(t, err)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	body := webhookBody(t, invoice.MerchantRefNum, "failed")
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))

	payment, err := svc.GetByID(ctx, invoice.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentFailed), payment.Status)

	got, err := enrollmentSvc.GetByID(ctx, enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentFailed), got.PaymentStatus)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, _ := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "forged@test.com")
	course := seedCourse(t, db, "Thermo", 420)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	body := webhookBody(t, invoice.MerchantRefNum, "paid")

	err = svc.HandleWebhook(ctx, body, "deadbeef")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	err = svc.HandleWebhook(ctx, body, "")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	payment, err := svc.GetByID(ctx, invoice.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPending), payment.Status)
	assert.Empty(t, payment.WebhookLog.Data(), "rejected deliveries are not logged")
}

func TestCheckStatus_ConvergesOnGatewayAnswer(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, enrollmentSvc := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "poll@test.com")
	course := seedCourse(t, db, "Logic", 290)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	stub.paymentStatus = "paid"
	payment, err := svc.CheckStatus(ctx, invoice.MerchantRefNum, student.ID, domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentPaid), payment.Status)

	access, err := enrollmentSvc.ResolveCourseAccess(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, access.Granted)
}

func TestCheckStatus_OwnershipEnforced(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, _ := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	owner := seedStudent(t, db, "owner@test.com")
	other := seedStudent(t, db, "other@test.com")
	course := seedCourse(t, db, "Ethics", 180)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: owner.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	_, err = svc.CheckStatus(ctx, invoice.MerchantRefNum, other.ID, domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Admins may inspect any payment.
	_, err = svc.CheckStatus(ctx, invoice.MerchantRefNum, other.ID, domain.RoleAdmin)
	assert.NoError(t, err)
}

func TestCheckStatus_GatewayDownKeepsStoredRecord(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, _ := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "offline@test.com")
	course := seedCourse(t, db, "Drawing", 220)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	stub.srv.Close()

	payment, err := svc.CheckStatus(ctx, invoice.MerchantRefNum, student.ID, domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	require.NotNil(t, payment)
	assert.Equal(t, string(domain.PaymentPending), payment.Status)
}

func TestRefund_PartialThenFull(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, enrollmentSvc := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "refund@test.com")
	course := seedCourse(t, db, "Music", 500)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	body := webhookBody(t, invoice.MerchantRefNum, "paid")
	require.NoError(t, svc.HandleWebhook(ctx, body, signWebhook(body)))

	outcome, err := svc.Refund(ctx, invoice.PaymentID, &RefundInput{Amount: 200, Reason: "partial goodwill"})
	require.NoError(t, err)
	assert.Equal(t, 200.0, outcome.Amount)
	assert.Equal(t, 200.0, outcome.TotalRefunded)
	assert.Equal(t, string(domain.PaymentPartiallyRefunded), outcome.Status)

	// Partial refund keeps access.
	access, err := enrollmentSvc.ResolveCourseAccess(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, access.Granted)

	// More than the remaining balance is rejected.
	_, err = svc.Refund(ctx, invoice.PaymentID, &RefundInput{Amount: 400})
	assert.ErrorIs(t, err, domain.ErrRefundExceedsBalance)

	// Zero amount refunds the full remaining balance and revokes access.
	stub.refundID = "rf_test_2"
	outcome, err = svc.Refund(ctx, invoice.PaymentID, &RefundInput{})
	require.NoError(t, err)
	assert.Equal(t, 300.0, outcome.Amount)
	assert.Equal(t, 500.0, outcome.TotalRefunded)
	assert.Equal(t, string(domain.PaymentRefunded), outcome.Status)

	access, err = enrollmentSvc.ResolveCourseAccess(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, access.Granted)

	payment, err := svc.GetByID(ctx, invoice.PaymentID)
	require.NoError(t, err)
	assert.Len(t, payment.Refunds.Data(), 2)
	assert.Equal(t, 0.0, payment.NetAmount())

	// A fully refunded payment cannot be refunded again.
	_, err = svc.Refund(ctx, invoice.PaymentID, &RefundInput{Amount: 1})
	assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)
}

func TestRefund_PendingPaymentNotRefundable(t *testing.T) {
	db := newTestDB(t)
	stub := newGatewayStub(t)
	svc, _ := newPaymentTestStack(t, db, stub.srv.URL)
	ctx := context.Background()

	student := seedStudent(t, db, "norefund@test.com")
	course := seedCourse(t, db, "Latin", 330)

	courseID := course.ID
	invoice, err := svc.CreateInvoice(ctx, &CreateInvoiceInput{
		UserID: student.ID, CourseID: &courseID,
	})
	require.NoError(t, err)

	_, err = svc.Refund(ctx, invoice.PaymentID, &RefundInput{Amount: 100})
	assert.ErrorIs(t, err, domain.ErrPaymentNotRefundable)
}
