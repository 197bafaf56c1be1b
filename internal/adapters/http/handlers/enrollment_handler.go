package handlers

import (
	"errors"

	"edhub/internal/adapters/persistence/repositories"
	"edhub/internal/core/domain"
	"edhub/internal/core/services"
	"edhub/internal/pkg/pagination"
	"edhub/internal/pkg/response"
	"edhub/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// EnrollmentHandler handles enrollment endpoints
type EnrollmentHandler struct {
	enrollmentService *services.EnrollmentService
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollmentService *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollmentService: enrollmentService}
}

// UpdateStatusRequest represents an admin status-change request
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// EnrollCourse enrolls the authenticated student into a course. Free
// courses activate immediately; paid courses start pending until the
// payment flow confirms them.
// @Summary Enroll in a course
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.DirectEnrollmentInput true "Enrollment data"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /enrollments/course [post]
func (h *EnrollmentHandler) EnrollCourse(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var input services.DirectEnrollmentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.StudentID = userID

	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	enrollment, err := h.enrollmentService.CreateDirectEnrollment(c.UserContext(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, domain.ErrDuplicateEnrollment):
			return response.Conflict(c, "Already enrolled in this course")
		case errors.Is(err, domain.ErrUserBanned):
			return response.Forbidden(c, "Account banned")
		default:
			return response.InternalServerError(c, "Failed to enroll")
		}
	}

	return response.Created(c, "Enrolled successfully", fiber.Map{"enrollment": enrollment})
}

// EnrollPackage enrolls the authenticated student into a package
// @Summary Enroll in a package
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.PackageEnrollmentInput true "Enrollment data"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /enrollments/package [post]
func (h *EnrollmentHandler) EnrollPackage(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var input services.PackageEnrollmentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.StudentID = userID

	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	enrollment, err := h.enrollmentService.CreatePackageEnrollment(c.UserContext(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPackageNotFound):
			return response.NotFound(c, "Package not found")
		case errors.Is(err, domain.ErrDuplicateEnrollment):
			return response.Conflict(c, "Already enrolled in this package")
		case errors.Is(err, domain.ErrUserBanned):
			return response.Forbidden(c, "Account banned")
		default:
			return response.InternalServerError(c, "Failed to enroll")
		}
	}

	return response.Created(c, "Enrolled successfully", fiber.Map{"enrollment": enrollment})
}

// MyCourses lists the authenticated student's accessible courses, merging
// direct enrollments with courses unlocked through packages
// @Summary List my courses
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /enrollments/my-courses [get]
func (h *EnrollmentHandler) MyCourses(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	views, err := h.enrollmentService.ListUserEnrollments(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch enrollments")
	}

	return response.Success(c, "Enrollments retrieved successfully", fiber.Map{
		"enrollments": views,
		"count":       len(views),
	})
}

// CheckAccess reports whether the student can consume a course and how
// @Summary Check course access
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Response
// @Router /enrollments/access/{id} [get]
func (h *EnrollmentHandler) CheckAccess(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	courseID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	access, err := h.enrollmentService.ResolveCourseAccess(c.UserContext(), userID, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to resolve access")
	}

	return response.Success(c, "Access resolved", fiber.Map{"access": access})
}

// ListAdmin lists enrollments for admins with filtering
// @Summary List enrollments (admin)
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param student_id query int false "Filter by student"
// @Param course_id query int false "Filter by course"
// @Param package_id query int false "Filter by package"
// @Param status query string false "Filter by payment status"
// @Success 200 {object} response.Response
// @Router /admin/enrollments [get]
func (h *EnrollmentHandler) ListAdmin(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	filter := repositories.EnrollmentFilter{
		StudentID: uint(c.QueryInt("student_id")),
		CourseID:  uint(c.QueryInt("course_id")),
		PackageID: uint(c.QueryInt("package_id")),
		Status:    c.Query("status"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by", "enrolled_at"),
		SortDesc:  c.Query("sort_order", "desc") == "desc",
		Offset:    params.Offset,
		Limit:     params.Limit,
	}

	enrollments, total, err := h.enrollmentService.List(c.UserContext(), filter)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch enrollments")
	}

	return response.Success(c, "Enrollments retrieved successfully", pagination.NewResponse(enrollments, params, total))
}

// UpdateStatus applies an admin payment-status change, including the
// reset-to-pending override
// @Summary Update enrollment payment status (admin)
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Enrollment ID"
// @Param body body UpdateStatusRequest true "New status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid enrollment ID")
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&req); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	role, _ := c.Locals("role").(string)

	enrollment, err := h.enrollmentService.UpdatePaymentStatus(c.UserContext(), id, domain.PaymentStatus(req.Status), domain.Role(role))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEnrollmentNotFound):
			return response.NotFound(c, "Enrollment not found")
		case errors.Is(err, domain.ErrInvalidStatus):
			return response.BadRequest(c, "Invalid payment status or transition")
		default:
			return response.InternalServerError(c, "Failed to update status")
		}
	}

	return response.Success(c, "Status updated successfully", fiber.Map{"enrollment": enrollment})
}
