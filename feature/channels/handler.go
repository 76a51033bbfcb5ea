package channels

import (
	"errors"
	"strconv"

	"cardstock/core/logger"
	"cardstock/feature/channels/models"
	"cardstock/feature/inventory"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles HTTP requests for channel integrations and sync.
type Handler struct {
	db     *gorm.DB
	sync   *SyncEngine
	poller *Poller
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(db *gorm.DB, sync *SyncEngine, poller *Poller, log *zap.Logger) *Handler {
	return &Handler{db: db, sync: sync, poller: poller, logger: log}
}

// RegisterRoutes registers the channel routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/channels")
	group.Get("/summary", h.HandleSummary)
	group.Get("/integrations", h.HandleListIntegrations)
	group.Post("/integrations/:id/poll", h.HandlePoll)
	group.Get("/listings", h.HandleListListings)
	group.Post("/listings/:id/push", h.HandlePush)
	group.Get("/jobs", h.HandleListJobs)
}

// StatusForError maps channel domain errors to HTTP status codes.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, ErrIntegrationNotFound),
		errors.Is(err, ErrListingNotFound),
		errors.Is(err, ErrJobNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrIntegrationInactive),
		errors.Is(err, ErrUnknownProvider):
		return fiber.StatusConflict
	case errors.Is(err, ErrAuthExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	l := logger.WithRayID(h.logger, c)
	status := StatusForError(err)
	if status == fiber.StatusInternalServerError {
		l.Error("channel request failed", zap.Error(err))
	} else {
		l.Warn("channel request rejected", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func pathID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" id")
	}
	return uint(id), nil
}

// HandleSummary returns the shop's sync health counters for the dashboard.
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	errored, err := h.sync.SyncErrorCount(c.Context(), shopID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"sync_error_count": errored})
}

// HandleListIntegrations lists the shop's channel integrations. Credentials
// never leave the server; the model excludes them from serialization.
func (h *Handler) HandleListIntegrations(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	var integrations []models.ChannelIntegration
	err = h.db.WithContext(c.Context()).
		Where("shop_id = ?", shopID).
		Order("id").
		Find(&integrations).Error
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(integrations)
}

// HandlePoll triggers an immediate order poll for one integration.
func (h *Handler) HandlePoll(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "integration")
	if err != nil {
		return err
	}
	if err := h.requireIntegrationShop(c, id, shopID); err != nil {
		return err
	}
	processed, err := h.poller.PollByID(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"line_items_processed": processed})
}

// HandleListListings lists the shop's channel listings.
func (h *Handler) HandleListListings(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	listings, err := h.sync.Listings(c.Context(), shopID, c.Query("sync_state"), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(listings)
}

// HandlePush enqueues a quantity push for one listing.
func (h *Handler) HandlePush(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "listing")
	if err != nil {
		return err
	}
	if err := h.requireListingShop(c, id, shopID); err != nil {
		return err
	}
	job, err := h.sync.EnqueuePush(c.Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(job)
}

// HandleListJobs lists sync jobs, newest first.
func (h *Handler) HandleListJobs(c *fiber.Ctx) error {
	shopID, err := inventory.ShopID(c)
	if err != nil {
		return err
	}
	filter := JobFilter{
		Status:        c.Query("status"),
		IntegrationID: uint(c.QueryInt("integration_id", 0)),
	}
	jobs, err := h.sync.Jobs(c.Context(), shopID, filter, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(jobs)
}

func (h *Handler) requireIntegrationShop(c *fiber.Ctx, integrationID, shopID uint) error {
	var count int64
	err := h.db.WithContext(c.Context()).Model(&models.ChannelIntegration{}).
		Where("id = ? AND shop_id = ?", integrationID, shopID).
		Count(&count).Error
	if err != nil {
		return h.fail(c, err)
	}
	if count == 0 {
		return h.fail(c, ErrIntegrationNotFound)
	}
	return nil
}

func (h *Handler) requireListingShop(c *fiber.Ctx, listingID, shopID uint) error {
	var count int64
	err := h.db.WithContext(c.Context()).Model(&models.ChannelListing{}).
		Joins("JOIN channel_integrations ON channel_integrations.id = channel_listings.integration_id").
		Where("channel_listings.id = ? AND channel_integrations.shop_id = ?", listingID, shopID).
		Count(&count).Error
	if err != nil {
		return h.fail(c, err)
	}
	if count == 0 {
		return h.fail(c, ErrListingNotFound)
	}
	return nil
}
