package api

import (
	"context"
	"net/http"
	"time"

	"rentwy-service/internal/models"
	"rentwy-service/internal/service"
	"rentwy-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by the readiness endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	bookings *service.BookingService
	activity *service.ActivityService
	tokens   TokenValidator
	checks   map[string]Pinger
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(
	bookings *service.BookingService,
	activity *service.ActivityService,
	tokens TokenValidator,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		bookings: bookings,
		activity: activity,
		tokens:   tokens,
		checks:   checks,
		logger:   util.Named("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	RegisterValidators()

	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware(h.tokens))
	{
		v1.GET("/items/:id/availability", h.checkAvailability)
		v1.PUT("/items/:id/availability", h.setAvailability)
		v1.GET("/items/:id/quote", h.getQuote)

		v1.POST("/bookings", h.createBooking)
		v1.GET("/bookings", h.listBookings)
		v1.GET("/bookings/:id", h.getBooking)
		v1.PATCH("/bookings/:id/status", h.updateBookingStatus)
		v1.GET("/bookings/:id/activity", h.getActivity)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency and reports the ones that failed
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type availabilityQuery struct {
	Start    string `form:"start" binding:"required,calendar_date"`
	End      string `form:"end" binding:"required,calendar_date"`
	Calendar bool   `form:"calendar"`
}

// parseRange reads dates that already passed calendar_date
func parseRange(startDate, endDate string) (time.Time, time.Time) {
	start, _ := models.ParseDate(startDate)
	end, _ := models.ParseDate(endDate)
	return start, end
}

// checkAvailability handles GET /items/:id/availability. With calendar=true the stored
// per-date records (blocks and booking holds) are included.
func (h *Handler) checkAvailability(c *gin.Context) {
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}

	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	start, end := parseRange(q.Start, q.End)

	available, err := h.bookings.CheckAvailability(c.Request.Context(), itemID, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{
		"item_id":    itemID,
		"start_date": q.Start,
		"end_date":   q.End,
		"available":  available,
	}

	if q.Calendar {
		records, err := h.bookings.GetAvailabilityCalendar(c.Request.Context(), itemID, start, end)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp["dates"] = records
	}

	c.JSON(http.StatusOK, resp)
}

type quoteQuery struct {
	Start        string `form:"start" binding:"required,calendar_date"`
	End          string `form:"end" binding:"required,calendar_date"`
	PickupMethod string `form:"pickup_method" binding:"omitempty,pickup_method"`
}

// getQuote handles GET /items/:id/quote
func (h *Handler) getQuote(c *gin.Context) {
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}

	var q quoteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	start, end := parseRange(q.Start, q.End)

	quote, err := h.bookings.GetQuote(c.Request.Context(), itemID, start, end, q.PickupMethod)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

type setAvailabilityRequest struct {
	Dates     []string `json:"dates" binding:"required,min=1,dive,calendar_date"`
	Available *bool    `json:"available" binding:"required"`
	Reason    string   `json:"reason"`
}

// setAvailability handles PUT /items/:id/availability
func (h *Handler) setAvailability(c *gin.Context) {
	itemID, ok := pathID(c, "item")
	if !ok {
		return
	}

	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, s := range req.Dates {
		d, _ := models.ParseDate(s)
		dates = append(dates, d)
	}

	records, err := h.bookings.SetAvailability(c.Request.Context(), actorID(c), itemID, dates, *req.Available, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item_id": itemID,
		"dates":   records,
	})
}

// createBooking handles booking requests. The Idempotency-Key header makes retries safe.
func (h *Handler) createBooking(c *gin.Context) {
	var req service.CreateBookingRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	req.RenterID = actorID(c)
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	booking, err := h.bookings.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

type listBookingsQuery struct {
	Role     string `form:"role" binding:"omitempty,oneof=renter owner"`
	Status   string `form:"status"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

// listBookings handles GET /bookings
func (h *Handler) listBookings(c *gin.Context) {
	var q listBookingsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}

	page, err := h.bookings.ListBookings(c.Request.Context(), actorID(c), q.Role, q.Status, q.Page, q.PageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// getBooking handles GET /bookings/:id
func (h *Handler) getBooking(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), actorID(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// updateBookingStatus handles PATCH /bookings/:id/status
func (h *Handler) updateBookingStatus(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	booking, err := h.bookings.UpdateBookingStatus(c.Request.Context(), bookingID, actorID(c), req.Status, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

// getActivity handles GET /bookings/:id/activity
func (h *Handler) getActivity(c *gin.Context) {
	bookingID, ok := pathID(c, "booking")
	if !ok {
		return
	}

	entries, err := h.activity.GetActivity(c.Request.Context(), actorID(c), bookingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking_id": bookingID,
		"activity":   entries,
	})
}

func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid " + what + " ID",
			"code":  service.KindValidation,
		})
		return uuid.Nil, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": bindingMessage(err),
		"code":  service.KindValidation,
	})
}

var kindStatus = map[service.ErrorKind]int{
	service.KindNotFound:   http.StatusNotFound,
	service.KindForbidden:  http.StatusForbidden,
	service.KindConflict:   http.StatusConflict,
	service.KindValidation: http.StatusBadRequest,
}

// respondError maps classified errors onto status codes. Internal errors are logged, not echoed.
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	if status, ok := kindStatus[kind]; ok {
		c.JSON(status, gin.H{
			"error": err.Error(),
			"code":  kind,
		})
		return
	}

	_ = c.Error(err)
	h.logger.Error("Request failed",
		zap.String("path", c.FullPath()),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
	})
}
