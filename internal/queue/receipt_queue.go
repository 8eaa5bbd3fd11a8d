package queue

import (
	"context"

	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/pkg/logger"

	"go.uber.org/zap"
)

// DefaultMaxAttempts 一張收據最多嘗試寄送的次數
const DefaultMaxAttempts = 5

type Delivery struct {
	Data *model.Receipt
	// 第幾次嘗試寄送，從 1 開始
	Attempt int
	Ack     func()
	// requeue 為 false 或次數用盡時，收據視為無法寄送
	Nack func(requeue bool)
}

type ReceiptQueue interface {
	// 發送出票收據到隊列
	PublishReceipt(ctx context.Context, receipt *model.Receipt) error
	// 訂閱收據隊列；ctx 結束後 channel 會被關閉
	SubscribeReceipts(ctx context.Context) (<-chan Delivery, error)
}

type envelope struct {
	receipt *model.Receipt
	attempt int
}

type ReceiptQueueImpl struct {
	// 單一行程內以 channel 模擬 MQ
	ch          chan envelope
	maxAttempts int
	log         *zap.Logger
}

func NewReceiptQueue(bufferSize int) ReceiptQueue {
	return &ReceiptQueueImpl{
		ch:          make(chan envelope, bufferSize),
		maxAttempts: DefaultMaxAttempts,
		log:         logger.WithComponent("mq"),
	}
}

func (q *ReceiptQueueImpl) PublishReceipt(ctx context.Context, receipt *model.Receipt) error {
	select {
	case q.ch <- envelope{receipt: receipt, attempt: 1}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubscribeReceipts ctx 結束時先把已在 buffer 中的收據交給消費者，再關閉 channel。
// 消費者必須持續讀取直到 channel 關閉。
func (q *ReceiptQueueImpl) SubscribeReceipts(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				q.drain(out)
				return
			case env := <-q.ch:
				d := q.newDelivery(env)
				select {
				case out <- d:
				case <-ctx.Done():
					out <- d
					q.drain(out)
					return
				}
			}
		}
	}()

	return out, nil
}

func (q *ReceiptQueueImpl) drain(out chan<- Delivery) {
	for {
		select {
		case env := <-q.ch:
			out <- q.newDelivery(env)
		default:
			return
		}
	}
}

func (q *ReceiptQueueImpl) newDelivery(env envelope) Delivery {
	return Delivery{
		Data:    env.receipt,
		Attempt: env.attempt,
		Ack:     func() {},
		Nack: func(requeue bool) {
			txID := env.receipt.Transaction.ID
			if !requeue || env.attempt >= q.maxAttempts {
				q.log.Error("receipt undeliverable, dropped",
					zap.String("transaction_id", txID), zap.Int("attempts", env.attempt))
				return
			}
			// 隊列已滿時放棄，避免卡住消費者
			select {
			case q.ch <- envelope{receipt: env.receipt, attempt: env.attempt + 1}:
			default:
				q.log.Error("receipt queue full, retry dropped", zap.String("transaction_id", txID))
			}
		},
	}
}
