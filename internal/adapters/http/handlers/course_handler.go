package handlers

import (
	"errors"

	"edhub/internal/core/domain"
	"edhub/internal/core/services"
	"edhub/internal/pkg/pagination"
	"edhub/internal/pkg/response"
	"edhub/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// CourseHandler handles catalog endpoints. Public read paths run the
// scheduled-publication resolver first, so a course whose publish date
// has passed is visible even if the background sweep has not fired yet.
type CourseHandler struct {
	catalogService     *services.CatalogService
	enrollmentService  *services.EnrollmentService
	publicationService *services.PublicationService
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(
	catalogService *services.CatalogService,
	enrollmentService *services.EnrollmentService,
	publicationService *services.PublicationService,
) *CourseHandler {
	return &CourseHandler{
		catalogService:     catalogService,
		enrollmentService:  enrollmentService,
		publicationService: publicationService,
	}
}

// List lists published courses
// @Summary List courses
// @Tags Courses
// @Produce json
// @Param search query string false "Search by name"
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /courses [get]
func (h *CourseHandler) List(c *fiber.Ctx) error {
	// Best effort, the cron sweep covers any miss
	_, _ = h.publicationService.ResolveScheduled(c.UserContext())

	params := pagination.GetParams(c)
	courses, total, err := h.catalogService.ListCourses(c.UserContext(), true, c.Query("search"), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Success(c, "Courses retrieved successfully", pagination.NewResponse(courses, params, total))
}

// Get returns one course with its chapters and lessons. Lesson video and
// file URLs are included only for free-preview lessons unless the caller
// holds access to the course.
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	_, _ = h.publicationService.ResolveScheduled(c.UserContext())

	access := domain.CourseAccess{Via: domain.AccessNone}
	if userID, ok := c.Locals("userID").(uint); ok {
		access, err = h.enrollmentService.ResolveCourseAccess(c.UserContext(), userID, id)
		if err != nil {
			return response.InternalServerError(c, "Failed to resolve course access")
		}
	}

	course, err := h.catalogService.GetCourseContent(c.UserContext(), id, access.Granted)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	// Unpublished courses are visible to admins only
	if !course.IsPublished() {
		if role, ok := c.Locals("role").(string); !ok || role != string(domain.RoleAdmin) {
			return response.NotFound(c, "Course not found")
		}
	}

	return response.Success(c, "Course retrieved successfully", fiber.Map{
		"course": course,
		"access": access,
	})
}

// ListAdmin lists all courses including drafts
// @Summary List all courses (admin)
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/courses [get]
func (h *CourseHandler) ListAdmin(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	courses, total, err := h.catalogService.ListCourses(c.UserContext(), false, c.Query("search"), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	return response.Success(c, "Courses retrieved successfully", pagination.NewResponse(courses, params, total))
}

// Create creates a course
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CourseInput true "Course data"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /admin/courses [post]
func (h *CourseHandler) Create(c *fiber.Ctx) error {
	var input services.CourseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	course, err := h.catalogService.CreateCourse(c.UserContext(), &input)
	if err != nil {
		if errors.Is(err, domain.ErrPriceRequired) {
			return response.BadRequest(c, "A paid course requires a price")
		}
		return response.InternalServerError(c, "Failed to create course")
	}

	return response.Created(c, "Course created successfully", fiber.Map{"course": course})
}

// Update updates a course
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param body body services.CourseInput true "Course data"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/courses/{id} [put]
func (h *CourseHandler) Update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var input services.CourseInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	course, err := h.catalogService.UpdateCourse(c.UserContext(), id, &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCourseNotFound):
			return response.NotFound(c, "Course not found")
		case errors.Is(err, domain.ErrPriceRequired):
			return response.BadRequest(c, "A paid course requires a price")
		default:
			return response.InternalServerError(c, "Failed to update course")
		}
	}

	return response.Success(c, "Course updated successfully", fiber.Map{"course": course})
}

// Delete removes a course
// @Summary Delete course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/courses/{id} [delete]
func (h *CourseHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	if err := h.catalogService.DeleteCourse(c.UserContext(), id); err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to delete course")
	}

	return response.Success(c, "Course deleted successfully", nil)
}

// AddChapter adds a chapter to a course
// @Summary Add chapter
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Param body body services.ChapterInput true "Chapter data"
// @Success 201 {object} response.Response
// @Router /admin/courses/{id}/chapters [post]
func (h *CourseHandler) AddChapter(c *fiber.Ctx) error {
	courseID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course ID")
	}

	var input services.ChapterInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	chapter, err := h.catalogService.AddChapter(c.UserContext(), courseID, &input)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to add chapter")
	}

	return response.Created(c, "Chapter added successfully", fiber.Map{"chapter": chapter})
}

// UpdateChapter updates a chapter
// @Summary Update chapter
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chapter ID"
// @Param body body services.ChapterInput true "Chapter data"
// @Success 200 {object} response.Response
// @Router /admin/chapters/{id} [put]
func (h *CourseHandler) UpdateChapter(c *fiber.Ctx) error {
	chapterID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid chapter ID")
	}

	var input services.ChapterInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	chapter, err := h.catalogService.UpdateChapter(c.UserContext(), chapterID, &input)
	if err != nil {
		if errors.Is(err, domain.ErrChapterNotFound) {
			return response.NotFound(c, "Chapter not found")
		}
		return response.InternalServerError(c, "Failed to update chapter")
	}

	return response.Success(c, "Chapter updated successfully", fiber.Map{"chapter": chapter})
}

// DeleteChapter removes a chapter
// @Summary Delete chapter
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chapter ID"
// @Success 200 {object} response.Response
// @Router /admin/chapters/{id} [delete]
func (h *CourseHandler) DeleteChapter(c *fiber.Ctx) error {
	chapterID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid chapter ID")
	}

	if err := h.catalogService.DeleteChapter(c.UserContext(), chapterID); err != nil {
		if errors.Is(err, domain.ErrChapterNotFound) {
			return response.NotFound(c, "Chapter not found")
		}
		return response.InternalServerError(c, "Failed to delete chapter")
	}

	return response.Success(c, "Chapter deleted successfully", nil)
}

// AddLesson adds a lesson to a chapter
// @Summary Add lesson
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Chapter ID"
// @Param body body services.LessonInput true "Lesson data"
// @Success 201 {object} response.Response
// @Router /admin/chapters/{id}/lessons [post]
func (h *CourseHandler) AddLesson(c *fiber.Ctx) error {
	chapterID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid chapter ID")
	}

	var input services.LessonInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	lesson, err := h.catalogService.AddLesson(c.UserContext(), chapterID, &input)
	if err != nil {
		if errors.Is(err, domain.ErrChapterNotFound) {
			return response.NotFound(c, "Chapter not found")
		}
		return response.InternalServerError(c, "Failed to add lesson")
	}

	return response.Created(c, "Lesson added successfully", fiber.Map{"lesson": lesson})
}

// UpdateLesson updates a lesson
// @Summary Update lesson
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Param body body services.LessonInput true "Lesson data"
// @Success 200 {object} response.Response
// @Router /admin/lessons/{id} [put]
func (h *CourseHandler) UpdateLesson(c *fiber.Ctx) error {
	lessonID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	var input services.LessonInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	lesson, err := h.catalogService.UpdateLesson(c.UserContext(), lessonID, &input)
	if err != nil {
		if errors.Is(err, domain.ErrLessonNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to update lesson")
	}

	return response.Success(c, "Lesson updated successfully", fiber.Map{"lesson": lesson})
}

// DeleteLesson removes a lesson
// @Summary Delete lesson
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Success 200 {object} response.Response
// @Router /admin/lessons/{id} [delete]
func (h *CourseHandler) DeleteLesson(c *fiber.Ctx) error {
	lessonID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	if err := h.catalogService.DeleteLesson(c.UserContext(), lessonID); err != nil {
		if errors.Is(err, domain.ErrLessonNotFound) {
			return response.NotFound(c, "Lesson not found")
		}
		return response.InternalServerError(c, "Failed to delete lesson")
	}

	return response.Success(c, "Lesson deleted successfully", nil)
}
