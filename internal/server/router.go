package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/verdemont/estates/backend/internal/assignment"
	"github.com/verdemont/estates/backend/internal/catalog"
	"github.com/verdemont/estates/backend/internal/directory"
	"github.com/verdemont/estates/backend/internal/inventory"
	"go.uber.org/zap"
)

var (
	errMissingInventoryService  = errors.New("inventory service dependency required")
	errMissingAssignmentService = errors.New("assignment service dependency required")
	errMissingDirectoryService  = errors.New("directory service dependency required")
	errMissingCatalogService    = errors.New("catalog service dependency required")
)

// Dependencies wires the admin-console API surface to the core services.
type Dependencies struct {
	Inventory   *inventory.Service
	Assignments *assignment.Service
	Directory   *directory.Service
	Catalog     *catalog.Service
	Events      *EventDispatcher
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewHTTPHandler builds the gin router consumed by the subdivision console.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Inventory == nil {
		return nil, errMissingInventoryService
	}
	if deps.Assignments == nil {
		return nil, errMissingAssignmentService
	}
	if deps.Directory == nil {
		return nil, errMissingDirectoryService
	}
	if deps.Catalog == nil {
		return nil, errMissingCatalogService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		inventory:   deps.Inventory,
		assignments: deps.Assignments,
		directory:   deps.Directory,
		catalog:     deps.Catalog,
		events:      events,
		logger:      logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/blocks", handler.handleListBlocks)
	router.POST("/blocks", handler.handleAddBlock)
	router.PATCH("/blocks/:id/capacity", handler.handleSetCapacity)
	router.DELETE("/blocks/:id", handler.handleDeleteBlock)
	router.GET("/blocks/:id/lots", handler.handleListBlockLots)
	router.POST("/blocks/:id/lots", handler.handleCreateLots)
	router.GET("/lots", handler.handleListLotsGrouped)
	router.POST("/lots/:id/assignment", handler.handleAssign)
	router.DELETE("/lots/:id/assignment", handler.handleUnassign)
	router.POST("/assignments/reconcile", handler.handleReconcile)
	router.GET("/homeowners", handler.handleListHomeowners)
	router.GET("/homeowners/:id/assignments", handler.handleListHomeownerAssignments)
	router.GET("/house-models", handler.handleListHouseModels)
	router.GET("/events", handler.handleEvents)

	return router, nil
}

type httpHandler struct {
	inventory   *inventory.Service
	assignments *assignment.Service
	directory   *directory.Service
	catalog     *catalog.Service
	events      *EventDispatcher
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type blockSummaryPayload struct {
	inventory.Block
	Occupancy inventory.Occupancy `json:"occupancy"`
}

func (h *httpHandler) handleListBlocks(c *gin.Context) {
	grouped, err := h.inventory.ListLotsGrouped(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	summaries := make([]blockSummaryPayload, 0, len(grouped))
	for _, entry := range grouped {
		summaries = append(summaries, blockSummaryPayload{
			Block:     entry.Block,
			Occupancy: inventory.OccupancyOf(entry.Lots),
		})
	}
	c.JSON(http.StatusOK, gin.H{"blocks": summaries})
}

type addBlockPayload struct {
	BlockNumber int `json:"block_number"`
	MaxLots     int `json:"max_lots"`
}

func (h *httpHandler) handleAddBlock(c *gin.Context) {
	var request addBlockPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	block, err := h.inventory.AddBlock(c.Request.Context(), request.BlockNumber, request.MaxLots)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(InventoryEvent{EventType: EventBlockChanged, BlockID: block.BlockID})
	c.JSON(http.StatusCreated, block)
}

type setCapacityPayload struct {
	MaxLots int `json:"max_lots"`
}

func (h *httpHandler) handleSetCapacity(c *gin.Context) {
	var request setCapacityPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	blockID := c.Param("id")
	effective, err := h.inventory.SetMaxLots(c.Request.Context(), blockID, request.MaxLots)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(InventoryEvent{EventType: EventBlockChanged, BlockID: blockID})
	c.JSON(http.StatusOK, gin.H{"max_lots": effective, "clamped": effective != request.MaxLots})
}

func (h *httpHandler) handleDeleteBlock(c *gin.Context) {
	blockID := c.Param("id")
	if err := h.inventory.DeleteBlock(c.Request.Context(), blockID); err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(InventoryEvent{EventType: EventBlockChanged, BlockID: blockID})
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListBlockLots(c *gin.Context) {
	lots, err := h.inventory.ListLotsForBlock(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lots": lots})
}

func (h *httpHandler) handleListLotsGrouped(c *gin.Context) {
	grouped, err := h.inventory.ListLotsGrouped(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": grouped})
}

type createLotsPayload struct {
	HouseModel string `json:"house_model"`
	Count      int    `json:"count"`
}

type createLotsResponse struct {
	Requested int             `json:"requested"`
	Created   int             `json:"created"`
	Lots      []inventory.Lot `json:"lots"`
	Shortfall string          `json:"shortfall,omitempty"`
}

func (h *httpHandler) handleCreateLots(c *gin.Context) {
	var request createLotsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	blockID := c.Param("id")
	result, err := h.inventory.CreateLots(c.Request.Context(), blockID, request.HouseModel, request.Count)
	if err != nil {
		h.respondError(c, err)
		return
	}

	lotIDs := make([]string, 0, len(result.Lots))
	for _, lot := range result.Lots {
		lotIDs = append(lotIDs, lot.LotID)
	}
	h.publish(InventoryEvent{EventType: EventLotChanged, BlockID: blockID, LotIDs: lotIDs})

	response := createLotsResponse{
		Requested: result.Requested,
		Created:   result.CreatedCount(),
		Lots:      result.Lots,
	}
	status := http.StatusCreated
	if result.Partial() {
		// 206 so the console renders "created K of N" instead of a plain success.
		status = http.StatusPartialContent
		response.Shortfall = errorCode(result.Shortfall)
	}
	c.JSON(status, response)
}

type assignPayload struct {
	HomeownerID string `json:"homeowner_id"`
	Status      string `json:"status"`
	HouseModel  string `json:"house_model"`
}

func (h *httpHandler) handleAssign(c *gin.Context) {
	var request assignPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	lotID := c.Param("id")
	lot, err := h.assignments.Assign(c.Request.Context(), lotID, assignment.Request{
		HomeownerID: request.HomeownerID,
		Status:      inventory.LotStatus(request.Status),
		HouseModel:  request.HouseModel,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(InventoryEvent{EventType: EventLotChanged, BlockID: lot.BlockID, LotIDs: []string{lot.LotID}})
	c.JSON(http.StatusOK, lot)
}

func (h *httpHandler) handleUnassign(c *gin.Context) {
	lot, err := h.assignments.Unassign(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.publish(InventoryEvent{EventType: EventLotChanged, BlockID: lot.BlockID, LotIDs: []string{lot.LotID}})
	c.JSON(http.StatusOK, lot)
}

func (h *httpHandler) handleReconcile(c *gin.Context) {
	report, err := h.assignments.Reconcile(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *httpHandler) handleListHomeowners(c *gin.Context) {
	homeowners, err := h.directory.ListHomeowners(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"homeowners": homeowners})
}

func (h *httpHandler) handleListHomeownerAssignments(c *gin.Context) {
	records, err := h.assignments.ListForHomeowner(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assignments": records})
}

func (h *httpHandler) handleListHouseModels(c *gin.Context) {
	models, err := h.catalog.ListModels(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"house_models": models})
}

func (h *httpHandler) handleEvents(c *gin.Context) {
	stream, cleanup := h.events.Subscribe(c.Request.Context())
	defer cleanup()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(event.EventType, event)
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, gin.H{"source": eventSource})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) publish(event InventoryEvent) {
	event.Timestamp = time.Now().UTC()
	h.events.Publish(event)
}

// respondError maps domain error kinds onto HTTP statuses with stable codes
// so the console can show a specific message per failure.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, inventory.ErrInvalidBlockNumber),
		errors.Is(err, inventory.ErrInvalidCapacity),
		errors.Is(err, inventory.ErrInvalidLotCount),
		errors.Is(err, inventory.ErrInvalidLotStatus),
		errors.Is(err, inventory.ErrUnknownHouseModel):
		status = http.StatusBadRequest
	case errors.Is(err, inventory.ErrBlockUnconfigured),
		errors.Is(err, assignment.ErrLotNotFound),
		errors.Is(err, directory.ErrHomeownerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, inventory.ErrDuplicateBlock),
		errors.Is(err, inventory.ErrBlockNotEmpty),
		errors.Is(err, inventory.ErrBlockAtCapacity),
		errors.Is(err, assignment.ErrAlreadyAssigned),
		errors.Is(err, assignment.ErrLotNotOccupied):
		status = http.StatusConflict
	case errors.Is(err, inventory.ErrStoreUnavailable),
		errors.Is(err, assignment.ErrStoreUnavailable),
		errors.Is(err, directory.ErrStoreUnavailable),
		errors.Is(err, catalog.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("unhandled service error", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": errorCode(err)})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, inventory.ErrInvalidBlockNumber):
		return "invalid_block_number"
	case errors.Is(err, inventory.ErrInvalidCapacity):
		return "invalid_capacity"
	case errors.Is(err, inventory.ErrInvalidLotCount):
		return "invalid_lot_count"
	case errors.Is(err, inventory.ErrInvalidLotStatus):
		return "invalid_lot_status"
	case errors.Is(err, inventory.ErrUnknownHouseModel):
		return "unknown_house_model"
	case errors.Is(err, inventory.ErrBlockUnconfigured):
		return "block_unconfigured"
	case errors.Is(err, inventory.ErrDuplicateBlock):
		return "duplicate_block"
	case errors.Is(err, inventory.ErrBlockNotEmpty):
		return "block_not_empty"
	case errors.Is(err, inventory.ErrBlockAtCapacity):
		return "block_at_capacity"
	case errors.Is(err, inventory.ErrExceedsRemainingCapacity):
		return "exceeds_remaining_capacity"
	case errors.Is(err, assignment.ErrLotNotFound):
		return "lot_not_found"
	case errors.Is(err, assignment.ErrLotNotOccupied):
		return "lot_not_occupied"
	case errors.Is(err, assignment.ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, directory.ErrHomeownerNotFound):
		return "homeowner_not_found"
	case errors.Is(err, inventory.ErrStoreUnavailable),
		errors.Is(err, assignment.ErrStoreUnavailable),
		errors.Is(err, directory.ErrStoreUnavailable),
		errors.Is(err, catalog.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "internal_error"
}
