package handlers

import (
	"errors"

	"edhub/internal/core/domain"
	"edhub/internal/core/services"
	"edhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// WatchHandler handles lesson watch tracking endpoints
type WatchHandler struct {
	watchService *services.WatchService
}

// NewWatchHandler creates a new watch handler
func NewWatchHandler(watchService *services.WatchService) *WatchHandler {
	return &WatchHandler{watchService: watchService}
}

// Record registers a watch event for a lesson
// @Summary Record lesson watch
// @Tags Watch
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /watch/{id} [post]
func (h *WatchHandler) Record(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	lessonID, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid lesson ID")
	}

	if err := h.watchService.RecordWatch(c.UserContext(), userID, lessonID); err != nil {
		switch {
		case errors.Is(err, domain.ErrLessonNotFound):
			return response.NotFound(c, "Lesson not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "You don't have access to this lesson")
		default:
			return response.InternalServerError(c, "Failed to record watch")
		}
	}

	return response.Success(c, "Watch recorded", nil)
}

// History lists the authenticated student's watch history
// @Summary Get watch history
// @Tags Watch
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /watch/history [get]
func (h *WatchHandler) History(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	history, err := h.watchService.ListByStudent(c.UserContext(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch watch history")
	}

	return response.Success(c, "Watch history retrieved successfully", fiber.Map{
		"history": history,
		"count":   len(history),
	})
}
