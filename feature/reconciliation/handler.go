package reconciliation

import (
	"errors"
	"strconv"

	"cardstock/core/logger"
	"cardstock/feature/channels"
	"cardstock/feature/inventory"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for reconciliation.
type Handler struct {
	engine   *Engine
	resolver *Resolver
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(engine *Engine, resolver *Resolver, log *zap.Logger) *Handler {
	return &Handler{engine: engine, resolver: resolver, logger: log}
}

// RegisterRoutes registers the reconciliation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/reconciliation")
	group.Get("/mismatches", h.HandleListMismatches)
	group.Post("/mismatches/:id/resolve", h.HandleResolve)
	group.Post("/integrations/:id/run", h.HandleRun)
}

// StatusForError maps reconciliation domain errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrMismatchNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrAlreadyResolved):
		return fiber.StatusConflict
	case errors.Is(err, ErrInvalidResolution),
		errors.Is(err, ErrMissingListing),
		errors.Is(err, ErrMissingLot):
		return fiber.StatusBadRequest
	case errors.Is(err, channels.ErrIntegrationNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, channels.ErrIntegrationInactive):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	l := logger.WithRayID(h.logger, c)
	status := StatusForError(err)
	if status == fiber.StatusInternalServerError {
		l.Error("reconciliation request failed", zap.Error(err))
	} else {
		l.Warn("reconciliation request rejected", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// HandleListMismatches lists the shop's mismatches.
func (h *Handler) HandleListMismatches(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	filter := MismatchFilter{
		Status:        c.Query("status"),
		IntegrationID: uint(c.QueryInt("integration_id", 0)),
	}
	mismatches, err := h.engine.Mismatches(c.Context(), shopID, filter, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(mismatches)
}

type resolveRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

// HandleResolve applies a resolution action to one mismatch.
func (h *Handler) HandleResolve(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid mismatch id")
	}
	var req resolveRequest
	if err := c.BodyParser(&req); err != nil || req.Action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action is required"})
	}
	mismatch, err := h.resolver.Resolve(c.Context(), shopID, uint(id), req.Action, req.Notes, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(mismatch)
}

// HandleRun triggers an immediate reconciliation sweep for one integration.
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	if _, err := inventory.ShopID(c); err != nil {
		return err
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid integration id")
	}
	report, err := h.engine.ReconcileByID(c.Context(), uint(id))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(report)
}

func actorFrom(c *fiber.Ctx) *uint {
	raw := c.Get("X-Actor-Id")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil
	}
	actor := uint(id)
	return &actor
}
