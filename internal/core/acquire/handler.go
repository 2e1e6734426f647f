package acquire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"mlscraper/internal/core/job"
	tasks "mlscraper/internal/platform/tasks"
	"mlscraper/internal/logger"
	"mlscraper/internal/utils/parser"
)

type Handler struct {
	svc   *Service
	tasks *tasks.Client
	jobs  *job.JobService
	log   *logger.Logger

	taskMaxRetries int
}

func NewHandler(svc *Service, t *tasks.Client, jobs *job.JobService, taskMaxRetries int, log *logger.Logger) *Handler {
	if taskMaxRetries <= 0 {
		taskMaxRetries = 3
	}
	return &Handler{svc: svc, tasks: t, jobs: jobs, taskMaxRetries: taskMaxRetries, log: log}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: msg})
}

// searchQuery binds GET /v1/search parameters.
type searchQuery struct {
	Q            string `form:"q"`
	Limit        int    `form:"limit"`
	IncludeStock bool   `form:"include_stock"`
	Debug        bool   `form:"debug"`
	Fresh        bool   `form:"fresh"`
}

// HandleSearch runs a synchronous list acquisition for a search term.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	var q searchQuery
	if err := parser.ParseQuery(c, &q); err != nil {
		return badRequest(c, "invalid query parameters")
	}
	if q.Q == "" {
		return badRequest(c, "q is required")
	}

	out := h.svc.Acquire(c.Context(), Request{
		Target:       q.Q,
		Intent:       IntentList,
		Limit:        q.Limit,
		IncludeStock: q.IncludeStock,
		Debug:        q.Debug,
		Fresh:        q.Fresh,
	})
	return h.respond(c, out)
}

// scrapeBody binds POST /v1/scrape.
type scrapeBody struct {
	URL          string `json:"url"`
	Intent       Intent `json:"intent,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	IncludeStock bool   `json:"include_stock,omitempty"`
	Debug        bool   `json:"debug,omitempty"`
	Fresh        bool   `json:"fresh,omitempty"`
}

// HandleScrape runs a synchronous acquisition for a site URL. Listing
// URLs default to list intent, product URLs to details.
func (h *Handler) HandleScrape(c *fiber.Ctx) error {
	var body scrapeBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.URL == "" {
		return badRequest(c, "url is required")
	}

	intent := body.Intent
	if intent == "" {
		intent = IntentDetails
	}

	out := h.svc.Acquire(c.Context(), Request{
		Target:       body.URL,
		Intent:       intent,
		Limit:        body.Limit,
		IncludeStock: body.IncludeStock,
		Debug:        body.Debug,
		Fresh:        body.Fresh,
	})
	return h.respond(c, out)
}

func (h *Handler) respond(c *fiber.Ctx, out Outcome) error {
	if !out.Success && out.StrategiesAttempted == nil {
		// Rejected before any strategy ran.
		return badRequest(c, out.Error)
	}
	if !out.Success {
		return c.Status(fiber.StatusBadGateway).JSON(out)
	}
	return c.JSON(out)
}

// taskPayload is the asynq task body for asynchronous acquisitions.
type taskPayload struct {
	JobID   string  `json:"job_id"`
	Request Request `json:"request"`
}

type jobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
}

// HandleCreateJob enqueues an acquisition and returns a job id.
func (h *Handler) HandleCreateJob(c *fiber.Ctx) error {
	var req Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Target == "" {
		return badRequest(c, "target is required")
	}

	jobID := uuid.New().String()
	if err := h.jobs.InitPending(c.Context(), jobID, job.TypeAcquire, req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}

	payload, err := json.Marshal(taskPayload{JobID: jobID, Request: req})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
	task := asynq.NewTask(tasks.TaskTypeAcquire, payload)
	if err := h.tasks.Enqueue(task, "default", h.taskMaxRetries); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}

	return c.JSON(jobResponse{Success: true, JobID: jobID})
}

// HandleGetJob returns the current state of an asynchronous
// acquisition.
func (h *Handler) HandleGetJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return badRequest(c, "job id is required")
	}

	j, err := h.jobs.GetJobStatus(c.Context(), jobID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{Error: "not_found"})
	}

	status := fiber.StatusOK
	if j.Status == job.StatusPending || j.Status == job.StatusProcessing {
		status = fiber.StatusAccepted
	}
	return c.Status(status).JSON(j)
}

// Category is a curated listing shortcut.
type Category struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

var categories = []Category{
	{Name: "Eletrônicos", URL: searchBase + "eletronicos"},
	{Name: "Roupas", URL: searchBase + "roupas"},
	{Name: "Casa", URL: searchBase + "casa"},
	{Name: "Esportes", URL: searchBase + "esportes"},
	{Name: "Livros", URL: searchBase + "livros"},
	{Name: "Carros", URL: searchBase + "carros"},
	{Name: "Celulares", URL: searchBase + "celulares"},
	{Name: "Computadores", URL: searchBase + "computadores"},
}

// HandleCategories lists popular listing entry points.
func (h *Handler) HandleCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "categories": categories})
}

// HandleTask is the asynq worker entry point for queued acquisitions.
func (h *Handler) HandleTask(ctx context.Context, t *asynq.Task) error {
	var payload taskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode task payload: %w", err)
	}

	if err := h.jobs.SetProcessing(ctx, payload.JobID, job.TypeAcquire); err != nil {
		h.log.LogWarnf("job %s: mark processing: %v", payload.JobID, err)
	}

	out := h.svc.Acquire(ctx, payload.Request)
	if err := h.jobs.Complete(ctx, payload.JobID, job.TypeAcquire, out.Success, out); err != nil {
		return fmt.Errorf("job %s: store result: %w", payload.JobID, err)
	}
	h.log.LogInfof("job %s finished (success=%v, strategy=%s)", payload.JobID, out.Success, out.StrategyUsed)
	return nil
}
