package mocks

import (
	"context"

	"go-gin-bus-reservation/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type ReservationServiceMock struct {
	mock.Mock
}

func NewReservationServiceMock() *ReservationServiceMock {
	return &ReservationServiceMock{}
}

func (m *ReservationServiceMock) session(args mock.Arguments) (*model.Session, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *ReservationServiceMock) StartSession(ctx context.Context) (*model.Session, error) {
	return m.session(m.Called(ctx))
}

func (m *ReservationServiceMock) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return m.session(m.Called(ctx, id))
}

func (m *ReservationServiceMock) Search(ctx context.Context, id uuid.UUID, form model.SearchForm) (*model.Session, error) {
	return m.session(m.Called(ctx, id, form))
}

func (m *ReservationServiceMock) SelectTicket(ctx context.Context, id uuid.UUID, ticketID int) (*model.Session, error) {
	return m.session(m.Called(ctx, id, ticketID))
}

func (m *ReservationServiceMock) SubmitPassenger(ctx context.Context, id uuid.UUID, form model.PassengerForm) (*model.Session, error) {
	return m.session(m.Called(ctx, id, form))
}

func (m *ReservationServiceMock) SeatMap(ctx context.Context, id uuid.UUID) (*model.SeatMap, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SeatMap), args.Error(1)
}

func (m *ReservationServiceMock) SelectSeat(ctx context.Context, id uuid.UUID, seatID string) (*model.Session, error) {
	return m.session(m.Called(ctx, id, seatID))
}

func (m *ReservationServiceMock) ProceedToPayment(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return m.session(m.Called(ctx, id))
}

func (m *ReservationServiceMock) Pay(ctx context.Context, id uuid.UUID, method model.PaymentMethod) (*model.Session, error) {
	return m.session(m.Called(ctx, id, method))
}

func (m *ReservationServiceMock) CancelAndRefund(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return m.session(m.Called(ctx, id))
}

func (m *ReservationServiceMock) Confirmation(ctx context.Context, id uuid.UUID) (*model.Confirmation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Confirmation), args.Error(1)
}

func (m *ReservationServiceMock) ConfirmationQR(ctx context.Context, id uuid.UUID, size int) ([]byte, error) {
	args := m.Called(ctx, id, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *ReservationServiceMock) ConfirmationPDF(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}
