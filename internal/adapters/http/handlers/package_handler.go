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

// PackageHandler handles course bundle endpoints
type PackageHandler struct {
	packageService *services.PackageService
}

// NewPackageHandler creates a new package handler
func NewPackageHandler(packageService *services.PackageService) *PackageHandler {
	return &PackageHandler{packageService: packageService}
}

// List lists published packages
// @Summary List packages
// @Tags Packages
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Response
// @Router /packages [get]
func (h *PackageHandler) List(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	packages, total, err := h.packageService.List(c.UserContext(), true, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch packages")
	}

	return response.Success(c, "Packages retrieved successfully", pagination.NewResponse(packages, params, total))
}

// Get returns one package with its member courses
// @Summary Get package
// @Tags Packages
// @Produce json
// @Param id path int true "Package ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /packages/{id} [get]
func (h *PackageHandler) Get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid package ID")
	}

	pkg, err := h.packageService.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPackageNotFound) {
			return response.NotFound(c, "Package not found")
		}
		return response.InternalServerError(c, "Failed to fetch package")
	}

	return response.Success(c, "Package retrieved successfully", fiber.Map{"package": pkg})
}

// ListAdmin lists all packages including unpublished
// @Summary List all packages (admin)
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/packages [get]
func (h *PackageHandler) ListAdmin(c *fiber.Ctx) error {
	params := pagination.GetParams(c)
	packages, total, err := h.packageService.List(c.UserContext(), false, params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch packages")
	}

	return response.Success(c, "Packages retrieved successfully", pagination.NewResponse(packages, params, total))
}

// Create creates a package. The bundle's original price and discount
// percentage are snapshotted from its member courses at this moment.
// @Summary Create package
// @Tags Packages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.PackageInput true "Package data"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /admin/packages [post]
func (h *PackageHandler) Create(c *fiber.Ctx) error {
	var input services.PackageInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	pkg, err := h.packageService.Create(c.UserContext(), &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCourseNotFound):
			return response.BadRequest(c, "One or more courses do not exist")
		case errors.Is(err, domain.ErrPackageTooFewCourses):
			return response.BadRequest(c, "A package must contain at least two courses")
		default:
			return response.InternalServerError(c, "Failed to create package")
		}
	}

	return response.Created(c, "Package created successfully", fiber.Map{"package": pkg})
}

// Update updates a package and re-snapshots its pricing
// @Summary Update package
// @Tags Packages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Package ID"
// @Param body body services.PackageInput true "Package data"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/packages/{id} [put]
func (h *PackageHandler) Update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid package ID")
	}

	var input services.PackageInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if fields := validate.Struct(&input); fields != nil {
		return response.UnprocessableEntity(c, "Validation failed", fields)
	}

	pkg, err := h.packageService.Update(c.UserContext(), id, &input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPackageNotFound):
			return response.NotFound(c, "Package not found")
		case errors.Is(err, domain.ErrCourseNotFound):
			return response.BadRequest(c, "One or more courses do not exist")
		case errors.Is(err, domain.ErrPackageTooFewCourses):
			return response.BadRequest(c, "A package must contain at least two courses")
		default:
			return response.InternalServerError(c, "Failed to update package")
		}
	}

	return response.Success(c, "Package updated successfully", fiber.Map{"package": pkg})
}

// Delete removes a package
// @Summary Delete package
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param id path int true "Package ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/packages/{id} [delete]
func (h *PackageHandler) Delete(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid package ID")
	}

	if err := h.packageService.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, domain.ErrPackageNotFound) {
			return response.NotFound(c, "Package not found")
		}
		return response.InternalServerError(c, "Failed to delete package")
	}

	return response.Success(c, "Package deleted successfully", nil)
}
