package handler

import (
	"errors"
	"fmt"
	"net/http"

	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/internal/service"
	"go-gin-bus-reservation/internal/validation"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
	"go-gin-bus-reservation/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service service.ReservationService
	// 套用在搜尋端點上的額外 middleware（例如限流）
	searchMiddleware []gin.HandlerFunc
}

func NewReservationHandler(service service.ReservationService, searchMiddleware ...gin.HandlerFunc) *ReservationHandler {
	return &ReservationHandler{service: service, searchMiddleware: searchMiddleware}
}

func (h *ReservationHandler) RegisterRoutes(r *gin.Engine) {
	router := r.Group("/api/v1", Notifications())
	{
		router.GET("catalog", h.GetCatalog)
		router.POST("reservations", h.StartSession)
		router.GET("reservations/:id", h.GetSession)
		router.POST("reservations/:id/search", append(h.searchMiddleware, h.Search)...)
		router.POST("reservations/:id/ticket", h.SelectTicket)
		router.POST("reservations/:id/passenger", h.SubmitPassenger)
		router.GET("reservations/:id/seats", h.GetSeatMap)
		router.POST("reservations/:id/seats", h.SelectSeat)
		router.POST("reservations/:id/proceed", h.ProceedToPayment)
		router.POST("reservations/:id/pay", h.Pay)
		router.POST("reservations/:id/cancel", h.Cancel)
		router.GET("reservations/:id/confirmation", h.GetConfirmation)
		router.GET("reservations/:id/confirmation/qr.png", h.GetConfirmationQR)
		router.GET("reservations/:id/confirmation/ticket.pdf", h.GetConfirmationPDF)
	}
}

type selectTicketRequest struct {
	TicketID int `json:"ticket_id" binding:"required"`
}

type selectSeatRequest struct {
	SeatID string `json:"seat_id" binding:"required"`
}

type payRequest struct {
	Method model.PaymentMethod `json:"method"`
}

type qrQuery struct {
	Size int `form:"size" binding:"omitempty,min=64,max=1024"`
}

func (h *ReservationHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"cities":          model.Cities,
		"hours":           model.Hours,
		"classes":         []model.TicketClass{model.TicketClassStandard, model.TicketClassVIP},
		"payment_methods": model.PaymentMethods,
	})
}

func (h *ReservationHandler) StartSession(c *gin.Context) {
	sess, err := h.service.StartSession(c.Request.Context())
	if err != nil {
		h.handleError(c, err, "StartSession", nil)
		return
	}
	h.handleSuccess(c, sess, http.StatusCreated)
}

func (h *ReservationHandler) GetSession(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	sess, err := h.service.GetSession(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "GetSession", nil)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) Search(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	var form model.SearchForm
	if err := BindJson(c, &form); err != nil {
		return
	}
	sess, err := h.service.Search(c.Request.Context(), id, form)
	if err != nil {
		h.handleError(c, err, "Search", sess)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) SelectTicket(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	var req selectTicketRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	sess, err := h.service.SelectTicket(c.Request.Context(), id, req.TicketID)
	if err != nil {
		h.handleError(c, err, "SelectTicket", sess)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) SubmitPassenger(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	var form model.PassengerForm
	if err := BindJson(c, &form); err != nil {
		return
	}
	sess, err := h.service.SubmitPassenger(c.Request.Context(), id, form)
	if err != nil {
		h.handleError(c, err, "SubmitPassenger", sess)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) GetSeatMap(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	m, err := h.service.SeatMap(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "GetSeatMap", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"seat_map":      model.NewSeatMapResponse(*m),
		"notifications": notifications(c),
	})
}

func (h *ReservationHandler) SelectSeat(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	var req selectSeatRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	sess, err := h.service.SelectSeat(c.Request.Context(), id, req.SeatID)
	if err != nil {
		h.handleError(c, err, "SelectSeat", sess)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) ProceedToPayment(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	sess, err := h.service.ProceedToPayment(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "ProceedToPayment", sess)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) Pay(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	var req payRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	sess, err := h.service.Pay(c.Request.Context(), id, req.Method)
	if err != nil {
		h.handleError(c, err, "Pay", sess)
		return
	}
	h.handleSuccess(c, sess, http.StatusOK)
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	sess, err := h.service.CancelAndRefund(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "Cancel", sess)
		return
	}
	// 退款後回到首頁重新開始
	c.JSON(http.StatusOK, gin.H{
		"session":       model.NewSessionResponse(sess),
		"redirect":      model.StepSearching,
		"notifications": notifications(c),
	})
}

func (h *ReservationHandler) GetConfirmation(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	conf, err := h.service.Confirmation(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "GetConfirmation", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"confirmation":  conf,
		"notifications": notifications(c),
	})
}

func (h *ReservationHandler) GetConfirmationQR(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	var q qrQuery
	if err := BindQuery(c, &q); err != nil {
		return
	}
	png, err := h.service.ConfirmationQR(c.Request.Context(), id, q.Size)
	if err != nil {
		h.handleError(c, err, "GetConfirmationQR", nil)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *ReservationHandler) GetConfirmationPDF(c *gin.Context) {
	id, ok := BindSessionID(c)
	if !ok {
		return
	}
	pdf, filename, err := h.service.ConfirmationPDF(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, "GetConfirmationPDF", nil)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Helper functions

func (h *ReservationHandler) handleError(c *gin.Context, err error, operation string, sess *model.Session) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))
	body := gin.H{"notifications": notifications(c)}
	if sess != nil {
		body["session"] = model.NewSessionResponse(sess)
	}

	var fe *validation.FieldError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &fe):
		log.Info("Validation failed", zap.String("field", fe.Field))
		status = http.StatusUnprocessableEntity
		body["error"] = fe.Message
		body["field"] = fe.Field
	case errors.Is(err, apperrors.ErrInvalidPaymentMethod):
		log.Info("Invalid payment method")
		status = http.StatusUnprocessableEntity
		body["error"] = "Invalid payment method"
	case errors.Is(err, apperrors.ErrTicketFullyBooked):
		log.Info("Ticket fully booked")
		status = http.StatusConflict
		body["error"] = "Ticket fully booked"
	case errors.Is(err, apperrors.ErrSeatOccupied):
		log.Info("Seat occupied")
		status = http.StatusConflict
		body["error"] = "Seat occupied"
	case errors.Is(err, apperrors.ErrNoSeatSelected):
		log.Info("No seat selected")
		status = http.StatusConflict
		body["error"] = "No seat selected"
	case errors.Is(err, apperrors.ErrMissingContext):
		log.Info("Missing reservation context")
		status = http.StatusConflict
		body["error"] = "Reservation context missing"
		body["redirect"] = model.StepSearching
	case errors.Is(err, apperrors.ErrInvalidTransition):
		log.Warn("Invalid step transition")
		status = http.StatusConflict
		body["error"] = "Action not allowed at the current step"
	case errors.Is(err, apperrors.ErrSessionTerminated):
		log.Info("Session terminated")
		status = http.StatusConflict
		body["error"] = "Reservation already closed"
	case errors.Is(err, apperrors.ErrLookupTimeout):
		log.Warn("Inventory lookup timed out")
		status = http.StatusGatewayTimeout
		body["error"] = "Ticket search timed out"
		body["retry"] = true
	case errors.Is(err, apperrors.ErrInventoryUnavailable):
		log.Warn("Inventory unavailable")
		status = http.StatusServiceUnavailable
		body["error"] = "Ticket search unavailable"
		body["retry"] = true
	case errors.Is(err, apperrors.ErrPaymentTimeout), errors.Is(err, apperrors.ErrRefundTimeout):
		log.Warn("Payment provider timed out")
		status = http.StatusGatewayTimeout
		body["error"] = "Payment provider timed out"
		body["retry"] = true
	case errors.Is(err, apperrors.ErrTicketNotFound):
		log.Warn("Ticket not found")
		status = http.StatusNotFound
		body["error"] = "Ticket not found"
	case errors.Is(err, apperrors.ErrSeatNotFound):
		log.Warn("Seat not found")
		status = http.StatusNotFound
		body["error"] = "Seat not found"
	case errors.Is(err, apperrors.ErrSessionNotFound):
		log.Warn("Session not found")
		status = http.StatusNotFound
		body["error"] = "Reservation not found"
	case errors.Is(err, apperrors.ErrConfirmationNotSet):
		log.Info("Confirmation not available")
		status = http.StatusNotFound
		body["error"] = "Confirmation not available"
	default:
		log.Error("Unexpected error")
		body["error"] = "Internal server error"
	}
	c.JSON(status, body)
}

func (h *ReservationHandler) handleSuccess(c *gin.Context, sess *model.Session, statusCode int) {
	c.JSON(statusCode, gin.H{
		"session":       model.NewSessionResponse(sess),
		"notifications": notifications(c),
	})
}
