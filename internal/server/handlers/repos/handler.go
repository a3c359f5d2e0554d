package repos

import (
	"errors"
	"fmt"
	"slices"

	"github.com/arcyd/arcyd/internal/reconcile"
	"github.com/arcyd/arcyd/internal/reports"
	"github.com/arcyd/arcyd/internal/tracker"
	"github.com/go-core-fx/fiberfx/handler"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 20

type Handler struct {
	reconcileSvc *reconcile.Service
	reportsSvc   *reports.Service
	trackerSvc   *tracker.Service

	validator *validator.Validate
	logger    *zap.Logger
}

func NewHandler(
	reconcileSvc *reconcile.Service,
	reportsSvc *reports.Service,
	trackerSvc *tracker.Service,
	validator *validator.Validate,
	logger *zap.Logger,
) handler.Handler {
	return &Handler{
		reconcileSvc: reconcileSvc,
		reportsSvc:   reportsSvc,
		trackerSvc:   trackerSvc,

		validator: validator,
		logger:    logger,
	}
}

// Register implements handler.Handler.
func (h *Handler) Register(r fiber.Router) {
	r = r.Group("/repos")

	r.Use(h.errorsHandler)
	r.Get("/", h.list)
	r.Get("/:name", h.get)
	r.Get("/:name/history", h.history)
	r.Get("/:name/branches", h.branches)
	r.Post("/:name/refresh", h.refresh)
}

func (h *Handler) list(c *fiber.Ctx) error {
	names := h.reconcileSvc.Repos()

	responses := make([]RepoResponse, 0, len(names))
	for _, name := range names {
		response, err := h.repoResponse(c, name)
		if err != nil {
			return err
		}
		responses = append(responses, response)
	}

	return c.JSON(responses)
}

func (h *Handler) get(c *fiber.Ctx) error {
	name, err := h.repoName(c)
	if err != nil {
		return err
	}

	response, err := h.repoResponse(c, name)
	if err != nil {
		return err
	}

	return c.JSON(response)
}

func (h *Handler) history(c *fiber.Ctx) error {
	name, err := h.repoName(c)
	if err != nil {
		return err
	}

	query := HistoryQuery{Limit: defaultHistoryLimit}
	if parseErr := c.QueryParser(&query); parseErr != nil {
		return fiber.NewError(fiber.StatusBadRequest, parseErr.Error())
	}
	if validErr := h.validator.Struct(query); validErr != nil {
		return fiber.NewError(fiber.StatusBadRequest, validErr.Error())
	}

	history, err := h.reportsSvc.History(c.Context(), name, query.Limit)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	return c.JSON(lo.Map(history, func(r reports.Report, _ int) ReportResponse {
		return h.toReportResponse(&r)
	}))
}

func (h *Handler) branches(c *fiber.Ctx) error {
	name, err := h.repoName(c)
	if err != nil {
		return err
	}

	states, err := h.trackerSvc.List(c.Context(), name)
	if err != nil {
		return fmt.Errorf("failed to list branches: %w", err)
	}

	return c.JSON(lo.Map(states, func(st tracker.BranchState, _ int) BranchStateResponse {
		return BranchStateResponse{
			Branch:       st.Branch,
			ReviewID:     st.ReviewID,
			Status:       string(st.Status),
			VerifiedHash: st.VerifiedHash,
			VerifiedBase: st.VerifiedBase,
			CreatedAt:    st.CreatedAt,
			UpdatedAt:    st.UpdatedAt,
		}
	}))
}

func (h *Handler) refresh(c *fiber.Ctx) error {
	name, err := h.repoName(c)
	if err != nil {
		return err
	}

	if runErr := h.reconcileSvc.RunRepo(c.UserContext(), name); runErr != nil {
		return fmt.Errorf("failed to refresh repo: %w", runErr)
	}

	return h.get(c)
}

func (h *Handler) repoName(c *fiber.Ctx) (string, error) {
	name := c.Params("name")
	if !slices.Contains(h.reconcileSvc.Repos(), name) {
		return "", fmt.Errorf("%w: %s", reconcile.ErrUnknownRepo, name)
	}

	return name, nil
}

func (h *Handler) repoResponse(c *fiber.Ctx, name string) (RepoResponse, error) {
	response := RepoResponse{Name: name}

	report, err := h.reportsSvc.Latest(c.Context(), name)
	if errors.Is(err, reports.ErrNotFound) {
		return response, nil
	}
	if err != nil {
		return response, fmt.Errorf("failed to get report: %w", err)
	}

	response.Report = lo.ToPtr(h.toReportResponse(report))

	return response, nil
}

func (h *Handler) errorsHandler(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, reconcile.ErrUnknownRepo):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, reconcile.ErrBusy):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}

	return err //nolint:wrapcheck //already wrapped
}

func (h *Handler) toReportResponse(report *reports.Report) ReportResponse {
	return ReportResponse{
		ID:           report.ID,
		CycleID:      report.CycleID,
		Status:       string(report.Status),
		StatusBranch: report.StatusBranch,
		StatusText:   report.StatusText,
		Branches: lo.Map(report.Branches, func(b reports.BranchResult, _ int) BranchResultResponse {
			return BranchResultResponse{
				Name:      b.Name,
				Status:    string(b.Status),
				BranchURL: b.BranchURL,
				ReviewURL: b.ReviewURL,
				Notes:     b.Notes,
			}
		}),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
}
