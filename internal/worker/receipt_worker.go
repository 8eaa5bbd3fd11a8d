package worker

import (
	"context"
	"time"

	"go-gin-bus-reservation/internal/confirmation"
	"go-gin-bus-reservation/internal/queue"
	"go-gin-bus-reservation/pkg/logger"

	"go.uber.org/zap"
)

// 單張電子票寄送的時限，不受 Start 的 ctx 影響
const dispatchTimeout = 30 * time.Second

type ReceiptWorker interface {
	// 訂閱收據隊列，在背景處理直到 ctx 結束。
	// 回傳的 channel 在隊列關閉且手上的收據處理完後關閉。
	Start(ctx context.Context) (<-chan struct{}, error)
}

type ReceiptWorkerImpl struct {
	queue      queue.ReceiptQueue
	dispatcher confirmation.Dispatcher
	log        *zap.Logger
}

func NewReceiptWorker(q queue.ReceiptQueue, dispatcher confirmation.Dispatcher) ReceiptWorker {
	return &ReceiptWorkerImpl{
		queue:      q,
		dispatcher: dispatcher,
		log:        logger.WithComponent("receipt-worker"),
	}
}

func (w *ReceiptWorkerImpl) Start(ctx context.Context) (<-chan struct{}, error) {
	msgs, err := w.queue.SubscribeReceipts(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			if err := w.handle(ctx, msg); err != nil {
				w.log.Warn("dispatch e-ticket failed",
					zap.String("transaction_id", msg.Data.Transaction.ID),
					zap.Int("attempt", msg.Attempt),
					zap.Error(err))
				msg.Nack(true)
				continue
			}
			msg.Ack()
		}
		w.log.Info("receipt worker stopped")
	}()
	return done, nil
}

func (w *ReceiptWorkerImpl) handle(ctx context.Context, msg queue.Delivery) error {
	// 停機時仍完成手上這張
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()

	receipt := msg.Data
	pdf, filename, err := confirmation.ETicketPDF(receipt.Confirmation)
	if err != nil {
		return err
	}
	return w.dispatcher.Dispatch(ctx, receipt, pdf, filename)
}
