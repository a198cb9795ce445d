package handler

import (
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/middleware"
	"github.com/estudioia/videos-api/internal/service"
	"github.com/estudioia/videos-api/pkg/response"
)

type PresentationHandler struct {
	service   *service.PresentationService
	validator *validator.Validate
	maxBytes  int64
	log       logrus.FieldLogger
}

func NewPresentationHandler(svc *service.PresentationService, v *validator.Validate, maxUploadMB int, log logrus.FieldLogger) *PresentationHandler {
	return &PresentationHandler{
		service:   svc,
		validator: v,
		maxBytes:  int64(maxUploadMB) << 20,
		log:       log.WithField("component", "presentation_handler"),
	}
}

// Upload handles POST /api/presentations
// @Summary      Upload presentation
// @Description  Stores a PPTX file and returns its parsed slide model
// @Tags         Presentations
// @Accept       multipart/form-data
// @Produce      json
// @Param        projectId formData string true "Project ID"
// @Param        file      formData file   true "PPTX file"
// @Success      201 {object} model.PresentationResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/presentations [post]
func (h *PresentationHandler) Upload(c *fiber.Ctx) error {
	projectID := c.FormValue("projectId")
	if err := h.validator.Var(projectID, "required,uuid"); err != nil {
		return response.ValidationError(c, "Validation failed", fiber.Map{"projectId": "uuid"})
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Validation failed", fiber.Map{"file": "required"})
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return response.ValidationError(c, "File too large", fiber.Map{"file": "max"})
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, h.log, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return respondError(c, h.log, err)
	}

	result, err := h.service.Ingest(c.UserContext(), middleware.GetUserID(c), projectID, fh.Filename, data)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Created(c, result)
}

// Get handles GET /api/presentations/:id
// @Summary      Get presentation
// @Tags         Presentations
// @Produce      json
// @Param        id path string true "Presentation ID"
// @Success      200 {object} model.PresentationResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/presentations/{id} [get]
func (h *PresentationHandler) Get(c *fiber.Ctx) error {
	result, err := h.service.Get(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}
