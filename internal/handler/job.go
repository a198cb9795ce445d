package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/middleware"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/service"
	"github.com/estudioia/videos-api/pkg/response"
)

type JobHandler struct {
	service   *service.JobService
	validator *validator.Validate
	log       logrus.FieldLogger
}

func NewJobHandler(svc *service.JobService, v *validator.Validate, log logrus.FieldLogger) *JobHandler {
	return &JobHandler{
		service:   svc,
		validator: v,
		log:       log.WithField("component", "job_handler"),
	}
}

// Submit handles POST /api/jobs
// @Summary      Submit render job
// @Description  Queue a presentation for rendering. A project runs one job at a time.
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        request body model.SubmitJobRequest true "Render request"
// @Success      202 {object} model.SubmitJobResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs [post]
func (h *JobHandler) Submit(c *fiber.Ctx) error {
	var req model.SubmitJobRequest
	if err := decodeStrict(c, &req); err != nil {
		return response.ValidationError(c, "Invalid request body", fiber.Map{"body": err.Error()})
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Submit(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, h.log, err)
	}

	return response.Accepted(c, result)
}

// Status handles GET /api/jobs/:jobId
// @Summary      Get render job status
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobView
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [get]
func (h *JobHandler) Status(c *fiber.Ctx) error {
	result, err := h.service.GetStatus(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}

// List handles GET /api/jobs
// @Summary      List render jobs
// @Description  Jobs the caller owns or collaborates on, newest first
// @Tags         Jobs
// @Produce      json
// @Param        projectId query string false "Project filter"
// @Param        status    query string false "Status filter"
// @Param        limit     query int    false "Page size (max 100)"
// @Param        offset    query int    false "Offset"
// @Success      200 {object} model.ListJobsResponse
// @Failure      400 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs [get]
func (h *JobHandler) List(c *fiber.Ctx) error {
	var q model.ListJobsQuery
	if err := c.QueryParser(&q); err != nil {
		return response.ValidationError(c, "Invalid query parameters", nil)
	}
	if err := h.validator.Struct(&q); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.List(c.UserContext(), middleware.GetUserID(c), &q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}

// Pause handles PATCH /api/jobs/:jobId/pause
// @Summary      Pause render job
// @Description  Holds a processing job at its next checkpoint. Other states are left alone.
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ControlResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/pause [patch]
func (h *JobHandler) Pause(c *fiber.Ctx) error {
	result, err := h.service.Pause(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}

// Resume handles PATCH /api/jobs/:jobId/resume
// @Summary      Resume render job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ControlResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/resume [patch]
func (h *JobHandler) Resume(c *fiber.Ctx) error {
	result, err := h.service.Resume(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}

// Cancel handles PATCH /api/jobs/:jobId/cancel
// @Summary      Cancel render job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.ControlResponse
// @Failure      403 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/cancel [patch]
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	result, err := h.service.Cancel(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}

// Retry handles POST /api/jobs/:jobId/retry
// @Summary      Retry render job
// @Description  Queues a new job with the settings of a failed or cancelled one
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      202 {object} model.SubmitJobResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      503 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/retry [post]
func (h *JobHandler) Retry(c *fiber.Ctx) error {
	result, err := h.service.Retry(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.Accepted(c, result)
}

// Delete handles DELETE /api/jobs/:jobId
// @Summary      Delete finished render job
// @Tags         Jobs
// @Param        jobId path string true "Job ID"
// @Success      204
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [delete]
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c)); err != nil {
		return respondError(c, h.log, err)
	}
	return response.NoContent(c)
}

// QueueStats handles GET /api/queue/stats
// @Summary      Queue backlog
// @Tags         Jobs
// @Produce      json
// @Success      200 {object} model.QueueStats
// @Security     BearerAuth
// @Router       /api/queue/stats [get]
func (h *JobHandler) QueueStats(c *fiber.Ctx) error {
	result, err := h.service.QueueStats(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, result)
}
