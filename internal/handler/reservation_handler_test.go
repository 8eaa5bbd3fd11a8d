package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-gin-bus-reservation/internal/handler"
	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/internal/notify"
	"go-gin-bus-reservation/internal/service/mocks"
	"go-gin-bus-reservation/internal/validation"
	apperrors "go-gin-bus-reservation/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const invalidJSON = `{"invalid": json}`

func createJSONHTTPRequest(method, url string, data interface{}) *http.Request {
	body, err := json.Marshal(data)
	if err != nil {
		body = nil
	}
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func setupReservationTestRouter(mockService *mocks.ReservationServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler.NewReservationHandler(mockService).RegisterRoutes(router)
	return router
}

type responseBody struct {
	Session struct {
		ID      uuid.UUID  `json:"id"`
		Step    model.Step `json:"step"`
		Tickets []struct {
			ID           int                `json:"id"`
			FullyBooked  bool               `json:"fully_booked"`
			Availability model.Availability `json:"availability"`
		} `json:"tickets"`
	} `json:"session"`
	Notifications []notify.Entry `json:"notifications"`
	Error         string         `json:"error"`
	Field         string         `json:"field"`
	Redirect      model.Step     `json:"redirect"`
	Retry         bool           `json:"retry"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) responseBody {
	t.Helper()
	var body responseBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// notifying 模擬服務層在處理請求時送出通知
func notifying(level notify.Level, message string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		notify.Send(ctx, nil, level, message)
	}
}

func newSession(step model.Step) *model.Session {
	return &model.Session{ID: uuid.New(), Step: step, UpdatedAt: time.Now()}
}

func TestGetCatalog(t *testing.T) {
	router := setupReservationTestRouter(mocks.NewReservationServiceMock())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Cities         []string `json:"cities"`
		Hours          []string `json:"hours"`
		PaymentMethods []string `json:"payment_methods"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Cities, "Douala")
	assert.Len(t, body.Hours, 16)
	assert.Equal(t, []string{"MTN", "Orange"}, body.PaymentMethods)
}

func TestStartSession(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepSearching)
		mockService.On("StartSession", mock.Anything).Return(sess, nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil))

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decode(t, w)
		assert.Equal(t, sess.ID, body.Session.ID)
		assert.Equal(t, model.StepSearching, body.Session.Step)
		assert.NotNil(t, body.Notifications)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - store error", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		mockService.On("StartSession", mock.Anything).Return(nil, fmt.Errorf("redis down")).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reservations", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestGetSession(t *testing.T) {
	t.Run("Failed - invalid id", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "GetSession", mock.Anything, mock.Anything)
	})

	t.Run("Failed - ErrSessionNotFound", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		id := uuid.New()
		mockService.On("GetSession", mock.Anything, id).Return(nil, apperrors.ErrSessionNotFound).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+id.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockService.AssertExpectations(t)
	})
}

func TestSearch(t *testing.T) {
	form := model.SearchForm{Departure: "Douala", Destination: "Yaoundé", Date: "2026-10-19", DepartureTime: "08:00", ArrivalTime: "10:00"}

	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepListing)
		sess.Tickets = []model.Ticket{{ID: 5, Class: model.TicketClassStandard, Price: 6000, TotalSeats: 40, AvailableSeats: 0}}
		mockService.On("Search", mock.Anything, sess.ID, form).
			Run(notifying(notify.LevelInfo, "Searching for available tickets...")).
			Return(sess, nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/search", form))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		require.Len(t, body.Session.Tickets, 1)
		assert.True(t, body.Session.Tickets[0].FullyBooked)
		assert.Equal(t, model.AvailabilityLow, body.Session.Tickets[0].Availability)
		assert.Equal(t, []notify.Entry{{Level: notify.LevelInfo, Message: "Searching for available tickets..."}}, body.Notifications)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - validation error", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepSearching)
		fe := &validation.FieldError{Field: "destination", Message: validation.MsgSameCity, Err: apperrors.ErrSameCity}
		mockService.On("Search", mock.Anything, sess.ID, mock.Anything).
			Run(notifying(notify.LevelError, validation.MsgSameCity)).
			Return(sess, fe).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/search", form))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		body := decode(t, w)
		assert.Equal(t, "destination", body.Field)
		assert.Equal(t, validation.MsgSameCity, body.Error)
		assert.Equal(t, model.StepSearching, body.Session.Step)
		require.Len(t, body.Notifications, 1)
		assert.Equal(t, notify.LevelError, body.Notifications[0].Level)
	})

	t.Run("Failed - lookup timeout offers retry", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepSearching)
		mockService.On("Search", mock.Anything, sess.ID, mock.Anything).Return(sess, apperrors.ErrLookupTimeout).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/search", form))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.True(t, decode(t, w).Retry)
	})

	t.Run("Failed - inventory unavailable offers retry", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepSearching)
		err := fmt.Errorf("%w: connection refused", apperrors.ErrInventoryUnavailable)
		mockService.On("Search", mock.Anything, sess.ID, mock.Anything).Return(sess, err).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/search", form))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.True(t, decode(t, w).Retry)
	})

	t.Run("Failed - invalid JSON", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+uuid.NewString()+"/search", bytes.NewBufferString(invalidJSON))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSelectTicket(t *testing.T) {
	t.Run("Failed - ErrTicketFullyBooked", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepListing)
		mockService.On("SelectTicket", mock.Anything, sess.ID, 5).
			Run(notifying(notify.LevelError, "Sorry, this bus is fully booked!")).
			Return(sess, apperrors.ErrTicketFullyBooked).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/ticket", gin.H{"ticket_id": 5}))

		assert.Equal(t, http.StatusConflict, w.Code)
		body := decode(t, w)
		assert.Equal(t, model.StepListing, body.Session.Step)
		assert.Equal(t, "Sorry, this bus is fully booked!", body.Notifications[0].Message)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - missing ticket id", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+uuid.NewString()+"/ticket", gin.H{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSelectSeat(t *testing.T) {
	t.Run("Failed - ErrSeatOccupied", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepSeatSelection)
		mockService.On("SelectSeat", mock.Anything, sess.ID, "A1").Return(sess, apperrors.ErrSeatOccupied).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/seats", gin.H{"seat_id": "A1"}))

		assert.Equal(t, http.StatusConflict, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - ErrMissingContext redirects", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepSearching)
		mockService.On("SelectSeat", mock.Anything, sess.ID, "A1").Return(sess, apperrors.ErrMissingContext).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/seats", gin.H{"seat_id": "A1"}))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, model.StepSearching, decode(t, w).Redirect)
	})
}

func TestGetSeatMap(t *testing.T) {
	mockService := mocks.NewReservationServiceMock()
	router := setupReservationTestRouter(mockService)
	id := uuid.New()
	m := &model.SeatMap{
		Class: model.TicketClassVIP,
		Rows:  1,
		Layout: []model.Seat{
			{ID: "A1", Row: 1, Position: model.SeatPositionLeft},
			{ID: "B1", Row: 1, Position: model.SeatPositionLeft},
			{Row: 1, Position: model.SeatPositionAisle},
			{ID: "C1", Row: 1, Position: model.SeatPositionRight},
			{ID: "D1", Row: 1, Position: model.SeatPositionRight},
		},
		Occupied: []string{"B1"},
	}
	mockService.On("SeatMap", mock.Anything, id).Return(m, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+id.String()+"/seats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SeatMap model.SeatMapResponse `json:"seat_map"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 4, body.SeatMap.BookableSeats)
	assert.Len(t, body.SeatMap.Seats, 5)
}

func TestPay(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepConfirmed)
		mockService.On("Pay", mock.Anything, sess.ID, model.PaymentMethodMTN).
			Run(notifying(notify.LevelSuccess, "Payment successful!")).
			Return(sess, nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/pay", gin.H{"method": "MTN"}))

		assert.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, model.StepConfirmed, body.Session.Step)
		assert.Equal(t, notify.LevelSuccess, body.Notifications[0].Level)
	})

	t.Run("Failed - ErrInvalidPaymentMethod", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepPayment)
		mockService.On("Pay", mock.Anything, sess.ID, model.PaymentMethod("Visa")).Return(sess, apperrors.ErrInvalidPaymentMethod).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/pay", gin.H{"method": "Visa"}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Failed - ErrPaymentTimeout", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepPayment)
		mockService.On("Pay", mock.Anything, sess.ID, model.PaymentMethodOrange).Return(sess, apperrors.ErrPaymentTimeout).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/pay", gin.H{"method": "Orange"}))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.True(t, decode(t, w).Retry)
	})

	t.Run("Failed - ErrSessionTerminated", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		sess := newSession(model.StepCancelled)
		mockService.On("Pay", mock.Anything, sess.ID, model.PaymentMethodMTN).Return(sess, apperrors.ErrSessionTerminated).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, createJSONHTTPRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/pay", gin.H{"method": "MTN"}))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCancel(t *testing.T) {
	mockService := mocks.NewReservationServiceMock()
	router := setupReservationTestRouter(mockService)
	sess := newSession(model.StepCancelled)
	mockService.On("CancelAndRefund", mock.Anything, sess.ID).Return(sess, nil).Once()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/reservations/"+sess.ID.String()+"/cancel", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, model.StepCancelled, body.Session.Step)
	assert.Equal(t, model.StepSearching, body.Redirect)
}

func TestConfirmationExports(t *testing.T) {
	t.Run("QR code", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		id := uuid.New()
		mockService.On("ConfirmationQR", mock.Anything, id, 128).Return([]byte("\x89PNG"), nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+id.String()+"/confirmation/qr.png?size=128", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		mockService.AssertExpectations(t)
	})

	t.Run("Failed - QR size out of range", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+uuid.NewString()+"/confirmation/qr.png?size=5000", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("PDF", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		id := uuid.New()
		mockService.On("ConfirmationPDF", mock.Anything, id).Return([]byte("%PDF-1.3"), "ETICKET_NOTPAY-1_A1.pdf", nil).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+id.String()+"/confirmation/ticket.pdf", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "ETICKET_NOTPAY-1_A1.pdf")
	})

	t.Run("Failed - ErrConfirmationNotSet", func(t *testing.T) {
		mockService := mocks.NewReservationServiceMock()
		router := setupReservationTestRouter(mockService)
		id := uuid.New()
		mockService.On("Confirmation", mock.Anything, id).Return(nil, apperrors.ErrConfirmationNotSet).Once()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/reservations/"+id.String()+"/confirmation", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
