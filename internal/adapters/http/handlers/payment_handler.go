package handlers

import (
	"errors"
	"log"

	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
	"edhub/internal/core/services"
	"edhub/internal/pkg/pagination"
	"edhub/internal/pkg/response"
	"edhub/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles payment gateway endpoints
type PaymentHandler struct {
	paymentService *services.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateInvoice creates a gateway invoice for a course or package
// @Summary Create payment invoice
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateInvoiceInput true "Purchase target"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /payments/create-invoice [post]
func (h *PaymentHandler) CreateInvoice(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var input services.CreateInvoiceInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.UserID = userID

	result, err := h.paymentService.CreateInvoice(c.UserContext(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, domain.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, domain.ErrPackageNotFound):
			return response.NotFound(c, "Package not found")
		case errors.Is(err, domain.ErrDuplicateEnrollment):
			return response.Conflict(c, "You already have access to this item")
		case errors.Is(err, domain.ErrUserBanned):
			return response.Forbidden(c, "Account banned")
		case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrGatewayError):
			return response.BadGateway(c, "Payment gateway is unavailable, please try again")
		default:
			return response.InternalServerError(c, "Failed to create payment invoice")
		}
	}

	return response.Created(c, "Invoice created successfully", result)
}

// CheckStatus polls the gateway and converges the local payment record
// @Summary Check payment status
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param merchantRefNum path string true "Merchant reference number"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/status/{merchantRefNum} [get]
func (h *PaymentHandler) CheckStatus(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	role, _ := c.Locals("role").(string)

	merchantRefNum := c.Params("merchantRefNum")
	if merchantRefNum == "" {
		return response.BadRequest(c, "Merchant reference number is required")
	}

	payment, err := h.paymentService.CheckStatus(c.UserContext(), merchantRefNum, userID, domain.Role(role))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentNotFound):
			return response.NotFound(c, "Payment not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "Access denied")
		case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrGatewayError):
			// Gateway down; report the stored state rather than failing
			return response.Success(c, "Gateway unreachable, returning last known status", fiber.Map{"payment": payment})
		default:
			return response.InternalServerError(c, "Failed to check payment status")
		}
	}

	return response.Success(c, "Payment status retrieved", fiber.Map{"payment": payment})
}

// Webhook receives gateway notifications. The raw body is verified
// against the x-fawaterak-signature header before any processing.
// @Summary Fawaterak webhook
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /payments/webhook/fawaterak [post]
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	body := c.Body()
	signature := c.Get("x-fawaterak-signature")

	if err := h.paymentService.HandleWebhook(c.UserContext(), body, signature); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			// Log the rejection server-side but keep the response generic:
			// the caller failed authentication and learns nothing more.
			log.Printf("⚠️ Rejected webhook with bad signature from %s", c.IP())
			return response.BadRequest(c, "Invalid request")
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Malformed webhook payload")
		case errors.Is(err, domain.ErrPaymentNotFound):
			return response.NotFound(c, "Payment not found")
		default:
			return response.InternalServerError(c, "Webhook processing failed")
		}
	}

	return response.Success(c, "Webhook processed successfully", nil)
}

// MyPayments lists the authenticated student's payments
// @Summary List my payments
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Response
// @Router /payments/my-payments [get]
func (h *PaymentHandler) MyPayments(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	params := pagination.GetParams(c)
	filter := repositories.PaymentFilter{
		Status:   c.Query("status"),
		CourseID: uint(c.QueryInt("course_id")),
		SortBy:   "created_at",
		SortDesc: true,
		Offset:   params.Offset,
		Limit:    params.Limit,
	}

	payments, total, err := h.paymentService.ListUserPayments(c.UserContext(), userID, filter)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch payments")
	}

	return response.Success(c, "Payments retrieved successfully", pagination.NewResponse(payments, params, total))
}

// ListAdmin lists payments for admins with filtering
// @Summary List payments (admin)
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param user_id query int false "Filter by user"
// @Param search query string false "Search customer name, email or reference"
// @Success 200 {object} response.Response
// @Router /admin/payments [get]
func (h *PaymentHandler) ListAdmin(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	filter := repositories.PaymentFilter{
		UserID:   uint(c.QueryInt("user_id")),
		CourseID: uint(c.QueryInt("course_id")),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		SortBy:   c.Query("sort_by", "created_at"),
		SortDesc: c.Query("sort_order", "desc") == "desc",
		Offset:   params.Offset,
		Limit:    params.Limit,
	}

	payments, total, err := h.paymentService.List(c.UserContext(), filter)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch payments")
	}

	return response.Success(c, "Payments retrieved successfully", pagination.NewResponse(payments, params, total))
}

// Refund issues a full or partial refund on a paid payment
// @Summary Refund payment (admin)
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Param body body services.RefundInput true "Refund amount and reason"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/payments/{id}/refund [post]
func (h *PaymentHandler) Refund(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid payment ID")
	}

	var input services.RefundInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	outcome, err := h.paymentService.Refund(c.UserContext(), id, &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaymentNotFound):
			return response.NotFound(c, "Payment not found")
		case errors.Is(err, domain.ErrPaymentNotRefundable):
			return response.BadRequest(c, "Only paid payments can be refunded")
		case errors.Is(err, domain.ErrRefundExceedsBalance):
			return response.BadRequest(c, "Refund amount exceeds remaining balance")
		case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrGatewayError):
			return response.BadGateway(c, "Payment gateway is unavailable, please try again")
		default:
			return response.InternalServerError(c, "Failed to process refund")
		}
	}

	return response.Success(c, "Refund processed successfully", outcome)
}
