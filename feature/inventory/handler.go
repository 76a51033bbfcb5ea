package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"cardstock/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ShopHeader carries the explicit shop scope. Tenant management lives outside
// this service; every request must name the shop it operates on.
const ShopHeader = "X-Shop-Id"

// Handler handles HTTP requests for inventory.
type Handler struct {
	service  *Service
	importer *Importer
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, importer *Importer, log *zap.Logger) *Handler {
	return &Handler{service: service, importer: importer, logger: log}
}

// RegisterRoutes registers the inventory routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/inventory")
	group.Get("/summary", h.HandleSummary)
	group.Get("/lots", h.HandleListLots)
	group.Post("/lots", h.HandleCreateLot)
	group.Get("/lots/:id", h.HandleGetLot)
	group.Get("/lots/:id/events", h.HandleListEvents)
	group.Post("/lots/:id/adjust", h.HandleAdjust)
	group.Post("/lots/:id/reserve", h.HandleReserve)
	group.Post("/lots/:id/unreserve", h.HandleUnreserve)
	group.Post("/lots/:id/grading/send", h.HandleGradingSend)
	group.Post("/lots/:id/grading/return", h.HandleGradingReturn)
	group.Post("/import", h.HandleImportCSV)
}

// ShopID parses the shop scope header.
func ShopID(c *fiber.Ctx) (uint, error) {
	raw := c.Get(ShopHeader)
	if raw == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "missing "+ShopHeader+" header")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+ShopHeader+" header")
	}
	return uint(id), nil
}

// StatusForError maps domain errors to HTTP status codes. Caller mistakes are
// 4xx; everything else is a 500.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrLotNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrInvalidDelta),
		errors.Is(err, ErrInvalidKind),
		errors.Is(err, ErrInsufficientQuantity),
		errors.Is(err, ErrInvalidStatus):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	l := logger.WithRayID(h.logger, c)
	status := StatusForError(err)
	if status == fiber.StatusInternalServerError {
		l.Error("inventory request failed", zap.Error(err))
	} else {
		l.Warn("inventory request rejected", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func (h *Handler) lotID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid lot id")
	}
	return uint(id), nil
}

// HandleSummary returns the shop dashboard counters.
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	summary, err := h.service.Summarize(c.Context(), shopID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(summary)
}

// HandleListLots lists the shop's lots with optional filters.
func (h *Handler) HandleListLots(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	filter := LotFilter{
		Status:    c.Query("status"),
		Condition: c.Query("condition"),
		Location:  c.Query("location"),
	}
	lots, err := h.service.Lots(c.Context(), shopID, filter, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lots)
}

// HandleCreateLot creates a lot from manual entry.
func (h *Handler) HandleCreateLot(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	var in CreateLotInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	in.ShopID = shopID
	lot, err := h.service.CreateLot(c.Context(), in, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(lot)
}

// HandleGetLot returns one lot.
func (h *Handler) HandleGetLot(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	id, err := h.lotID(c)
	if err != nil {
		return err
	}
	lot, err := h.service.GetLot(c.Context(), shopID, id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(lot)
}

// HandleListEvents returns a lot's ledger events.
func (h *Handler) HandleListEvents(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	id, err := h.lotID(c)
	if err != nil {
		return err
	}
	events, err := h.service.Events(c.Context(), shopID, id, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(events)
}

type adjustRequest struct {
	QuantityDelta *int   `json:"quantity_delta"`
	Reason        string `json:"reason"`
}

// HandleAdjust applies a manual quantity adjustment.
func (h *Handler) HandleAdjust(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	id, err := h.lotID(c)
	if err != nil {
		return err
	}
	var req adjustRequest
	if err := c.BodyParser(&req); err != nil || req.QuantityDelta == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "quantity_delta is required"})
	}
	result, err := h.service.Adjust(c.Context(), shopID, id, *req.QuantityDelta, req.Reason, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

type quantityRequest struct {
	Quantity int    `json:"quantity"`
	Grade    string `json:"grade"`
}

// HandleReserve moves quantity into the reserved pool.
func (h *Handler) HandleReserve(c *fiber.Ctx) error {
	return h.applyQuantityOp(c, h.service.Reserve)
}

// HandleUnreserve releases reserved quantity.
func (h *Handler) HandleUnreserve(c *fiber.Ctx) error {
	return h.applyQuantityOp(c, h.service.Unreserve)
}

// HandleGradingSend sends quantity out for grading.
func (h *Handler) HandleGradingSend(c *fiber.Ctx) error {
	return h.applyQuantityOp(c, h.service.SendForGrading)
}

// HandleGradingReturn returns graded quantity to availability.
func (h *Handler) HandleGradingReturn(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	id, err := h.lotID(c)
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	result, err := h.service.ReturnFromGrading(c.Context(), shopID, id, req.Quantity, req.Grade, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) applyQuantityOp(c *fiber.Ctx, op func(ctx context.Context, shopID, lotID uint, quantity int, actorID *uint) (*ApplyResult, error)) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	id, err := h.lotID(c)
	if err != nil {
		return err
	}
	var req quantityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result, err := op(c.Context(), shopID, id, req.Quantity, actorFrom(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

// HandleImportCSV accepts a multipart CSV upload with a column mapping and
// applies it synchronously, returning the per-row summary.
func (h *Handler) HandleImportCSV(c *fiber.Ctx) error {
	shopID, err := ShopID(c)
	if err != nil {
		return err
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no file provided"})
	}
	mappingRaw := c.FormValue("mapping")
	if mappingRaw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "column mapping is required"})
	}
	var mapping map[string]string
	if err := json.Unmarshal([]byte(mappingRaw), &mapping); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid mapping"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return h.fail(c, err)
	}

	summary, err := h.importer.Import(c.Context(), shopID, actorFrom(c), mapping, content)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(summary)
}

// actorFrom reads the optional acting user id header. Authentication is an
// external collaborator; the id is informational for the audit trail.
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
