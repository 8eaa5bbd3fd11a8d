package worker

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/internal/queue"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatched struct {
	receipt  *model.Receipt
	pdf      []byte
	filename string
}

type recordingDispatcher struct {
	mu       sync.Mutex
	failures int
	calls    []dispatched
	done     chan struct{}
}

func newRecordingDispatcher(failures int) *recordingDispatcher {
	return &recordingDispatcher{failures: failures, done: make(chan struct{}, 10)}
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, receipt *model.Receipt, pdf []byte, filename string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("smtp unavailable")
	}
	d.calls = append(d.calls, dispatched{receipt: receipt, pdf: pdf, filename: filename})
	d.done <- struct{}{}
	return nil
}

func newReceipt() *model.Receipt {
	return &model.Receipt{
		SessionID:   uuid.New(),
		Email:       "jean@example.com",
		Transaction: model.Transaction{ID: "NOTPAY-77", Method: model.PaymentMethodMTN, Amount: 5000, Outcome: model.TransactionConfirmed},
		Confirmation: model.Confirmation{
			Name: "Jean Mbarga", Departure: "Douala", Destination: "Yaoundé", Date: "2026-10-19",
			Carrier: "Express Cameroon", Time: "08:00", Price: 5000, Class: model.TicketClassStandard,
			Seat: "A1", TransactionID: "NOTPAY-77",
		},
	}
}

func TestReceiptWorker_Start(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewReceiptQueue(10)
		dispatcher := newRecordingDispatcher(0)

		_, err := NewReceiptWorker(q, dispatcher).Start(ctx)
		require.NoError(t, err)
		require.NoError(t, q.PublishReceipt(ctx, newReceipt()))

		select {
		case <-dispatcher.done:
		case <-time.After(5 * time.Second):
			t.Fatal("e-ticket was not dispatched")
		}

		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		require.Len(t, dispatcher.calls, 1)
		assert.Equal(t, "NOTPAY-77", dispatcher.calls[0].receipt.Transaction.ID)
		assert.True(t, bytes.HasPrefix(dispatcher.calls[0].pdf, []byte("%PDF")))
		assert.Equal(t, "ETICKET_NOTPAY-77_A1.pdf", dispatcher.calls[0].filename)
	})

	t.Run("Retries after dispatch failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewReceiptQueue(10)
		dispatcher := newRecordingDispatcher(2)

		_, err := NewReceiptWorker(q, dispatcher).Start(ctx)
		require.NoError(t, err)
		require.NoError(t, q.PublishReceipt(ctx, newReceipt()))

		select {
		case <-dispatcher.done:
		case <-time.After(5 * time.Second):
			t.Fatal("e-ticket was not dispatched after retries")
		}

		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		assert.Len(t, dispatcher.calls, 1)
		assert.Equal(t, 0, dispatcher.failures)
	})

	t.Run("Stops after dispatching queued receipts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		q := queue.NewReceiptQueue(10)
		dispatcher := newRecordingDispatcher(0)
		for i := 0; i < 3; i++ {
			require.NoError(t, q.PublishReceipt(context.Background(), newReceipt()))
		}

		stopped, err := NewReceiptWorker(q, dispatcher).Start(ctx)
		require.NoError(t, err)
		cancel()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}

		dispatcher.mu.Lock()
		defer dispatcher.mu.Unlock()
		assert.Len(t, dispatcher.calls, 3)
	})

	t.Run("Failed - subscribe error", func(t *testing.T) {
		stopped, err := NewReceiptWorker(failingQueue{}, newRecordingDispatcher(0)).Start(context.Background())
		assert.Error(t, err)
		assert.Nil(t, stopped)
	})
}

type failingQueue struct{}

func (failingQueue) PublishReceipt(context.Context, *model.Receipt) error { return nil }

func (failingQueue) SubscribeReceipts(context.Context) (<-chan queue.Delivery, error) {
	return nil, errors.New("redis unavailable")
}
