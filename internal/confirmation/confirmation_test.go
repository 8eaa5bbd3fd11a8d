package confirmation

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeContext() model.ReservationContext {
	return model.ReservationContext{}.
		WithSearch(model.SearchCriteria{Departure: "Douala", Destination: "Yaoundé", Date: "2026-10-19", DepartureTime: "08:00", ArrivalTime: "10:00"}).
		WithTicket(model.Ticket{ID: 1, Carrier: "Express Cameroon", Class: model.TicketClassStandard, Price: 5000, TotalSeats: 45, AvailableSeats: 12}).
		WithPassenger(model.PassengerInfo{FirstName: "Jean", LastName: "Mbarga", IdentityCode: "KIT060", Gender: model.GenderMale, Civility: model.CivilityMr, Email: "jean@example.com", Phone: "+237612345678"}).
		WithSeat("C4")
}

func TestBuild(t *testing.T) {
	tx := model.Transaction{ID: "NOTPAY-123456", Method: model.PaymentMethodMTN, Amount: 5000, Outcome: model.TransactionConfirmed}

	t.Run("Success", func(t *testing.T) {
		c, err := Build(completeContext(), tx)

		require.NoError(t, err)
		assert.Equal(t, "Jean Mbarga", c.Name)
		assert.Equal(t, "Douala", c.Departure)
		assert.Equal(t, "Yaoundé", c.Destination)
		assert.Equal(t, "Express Cameroon", c.Carrier)
		assert.Equal(t, "08:00", c.Time)
		assert.Equal(t, 5000, c.Price)
		assert.Equal(t, "C4", c.Seat)
		assert.Equal(t, "NOTPAY-123456", c.TransactionID)
	})

	t.Run("Failed - missing seat", func(t *testing.T) {
		_, err := Build(completeContext().WithSeat(""), tx)
		assert.ErrorIs(t, err, apperrors.ErrMissingContext)
	})
}

func TestPayload(t *testing.T) {
	c, err := Build(completeContext(), model.Transaction{ID: "NOTPAY-1"})
	require.NoError(t, err)

	data, err := Payload(c)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"name", "departure", "destination", "date", "bus", "time", "price"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "Express Cameroon", fields["bus"])
}

func TestQRCodePNG(t *testing.T) {
	c, err := Build(completeContext(), model.Transaction{ID: "NOTPAY-1"})
	require.NoError(t, err)

	png, err := QRCodePNG(c, 0)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG\r\n\x1a\n")))
}

func TestETicketPDF(t *testing.T) {
	c, err := Build(completeContext(), model.Transaction{ID: "NOTPAY-42"})
	require.NoError(t, err)

	pdf, filename, err := ETicketPDF(c)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, "ETICKET_NOTPAY-42_C4.pdf", filename)
}

func TestLogDispatcher(t *testing.T) {
	receipt := &model.Receipt{SessionID: uuid.New(), Email: "jean@example.com", Transaction: model.Transaction{ID: "NOTPAY-1"}}
	assert.NoError(t, NewLogDispatcher().Dispatch(context.Background(), receipt, []byte("%PDF"), "ETICKET.pdf"))
}
