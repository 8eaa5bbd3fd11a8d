package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go-gin-bus-reservation/internal/model"
	"go-gin-bus-reservation/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	StreamKey         = "receipts:stream"
	ConsumerGroupName = "receipt-workers"
	// DeadLetterKey 無法寄送的收據，hash field 為交易編號
	DeadLetterKey = "receipts:dead"

	fieldReceipt       = "receipt"
	fieldTransactionID = "transaction_id"
	fieldAttempt       = "attempt"
)

// RedisStreamReceiptQueueConfig 零值欄位使用預設值
type RedisStreamReceiptQueueConfig struct {
	MaxAttempts int
	// 第 n 次失敗後等待 n*RetryBackoff 再重新寄送
	RetryBackoff time.Duration
	ReadBlock    time.Duration
	// 啟動時領回其他 consumer 閒置超過此時間、尚未 ack 的收據
	RecoverMinIdle time.Duration
}

func (c *RedisStreamReceiptQueueConfig) withDefaults() RedisStreamReceiptQueueConfig {
	cfg := RedisStreamReceiptQueueConfig{
		MaxAttempts:    DefaultMaxAttempts,
		RetryBackoff:   2 * time.Second,
		ReadBlock:      2 * time.Second,
		RecoverMinIdle: 30 * time.Second,
	}
	if c == nil {
		return cfg
	}
	if c.MaxAttempts > 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.RetryBackoff > 0 {
		cfg.RetryBackoff = c.RetryBackoff
	}
	if c.ReadBlock > 0 {
		cfg.ReadBlock = c.ReadBlock
	}
	if c.RecoverMinIdle > 0 {
		cfg.RecoverMinIdle = c.RecoverMinIdle
	}
	return cfg
}

// DeadLetter 寄送次數用盡的收據
type DeadLetter struct {
	Receipt  *model.Receipt `json:"receipt,omitempty"`
	Raw      string         `json:"raw,omitempty"`
	Attempts int            `json:"attempts"`
	Reason   string         `json:"reason"`
	FailedAt time.Time      `json:"failed_at"`
}

// RedisStreamReceiptQueueImpl 多實例共用的收據隊列。
// 重試時以新的 stream entry（attempt+1）取代原 entry，原 entry 在同一個 transaction 中 ack。
type RedisStreamReceiptQueueImpl struct {
	client   *redis.Client
	consumer string
	cfg      RedisStreamReceiptQueueConfig
	log      *zap.Logger
}

func NewRedisStreamReceiptQueue(ctx context.Context, client *redis.Client, consumerID string, config *RedisStreamReceiptQueueConfig) (ReceiptQueue, error) {
	if consumerID == "" {
		consumerID = uuid.New().String()
	}
	q := &RedisStreamReceiptQueueImpl{
		client:   client,
		consumer: "receipt-worker:" + consumerID,
		cfg:      config.withDefaults(),
		log:      logger.WithComponent("mq").With(zap.String("consumer", consumerID)),
	}
	err := client.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("ensure consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisStreamReceiptQueueImpl) PublishReceipt(ctx context.Context, receipt *model.Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	if err := q.client.XAdd(ctx, q.entry(string(payload), receipt.Transaction.ID, 1)).Err(); err != nil {
		return fmt.Errorf("xadd receipt %s: %w", receipt.Transaction.ID, err)
	}
	return nil
}

func (q *RedisStreamReceiptQueueImpl) entry(payload, txID string, attempt int) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{
			fieldReceipt:       payload,
			fieldTransactionID: txID,
			fieldAttempt:       attempt,
		},
	}
}

func (q *RedisStreamReceiptQueueImpl) SubscribeReceipts(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		if !q.recover(ctx, out) {
			return
		}
		for ctx.Err() == nil {
			streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    ConsumerGroupName,
				Consumer: q.consumer,
				Streams:  []string{StreamKey, ">"},
				Count:    10,
				Block:    q.cfg.ReadBlock,
			}).Result()
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			if err != nil {
				q.log.Error("read receipts failed", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			for _, stream := range streams {
				if !q.deliver(ctx, out, stream.Messages) {
					return
				}
			}
		}
	}()
	return out, nil
}

// recover 啟動時一次性領回閒置過久的未 ack 收據（例如前一個 worker 在寄送中途結束）
func (q *RedisStreamReceiptQueueImpl) recover(ctx context.Context, out chan<- Delivery) bool {
	start := "0-0"
	for {
		claimed, next, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   StreamKey,
			Group:    ConsumerGroupName,
			Consumer: q.consumer,
			MinIdle:  q.cfg.RecoverMinIdle,
			Start:    start,
			Count:    50,
		}).Result()
		if err != nil && err != redis.Nil {
			q.log.Warn("recover stale receipts failed", zap.Error(err))
			return ctx.Err() == nil
		}
		if len(claimed) > 0 {
			q.log.Info("recovered stale receipts", zap.Int("count", len(claimed)))
		}
		if !q.deliver(ctx, out, claimed) {
			return false
		}
		if next == "" || next == "0-0" {
			return true
		}
		start = next
	}
}

func (q *RedisStreamReceiptQueueImpl) deliver(ctx context.Context, out chan<- Delivery, msgs []redis.XMessage) bool {
	for _, msg := range msgs {
		d, ok := q.newDelivery(msg)
		if !ok {
			continue
		}
		select {
		case out <- d:
		case <-ctx.Done():
			// 未交出的 entry 留在 PEL，下次啟動時由 recover 領回
			return false
		}
	}
	return true
}

func (q *RedisStreamReceiptQueueImpl) newDelivery(msg redis.XMessage) (Delivery, bool) {
	payload, _ := msg.Values[fieldReceipt].(string)
	attempt := 1
	if v, ok := msg.Values[fieldAttempt].(string); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			attempt = n
		}
	}

	var receipt model.Receipt
	if err := json.Unmarshal([]byte(payload), &receipt); err != nil || receipt.Transaction.ID == "" {
		q.log.Warn("malformed receipt entry", zap.String("message_id", msg.ID), zap.Error(err))
		q.deadLetter(msg.ID, "malformed:"+msg.ID, DeadLetter{Raw: payload, Attempts: attempt, Reason: "malformed receipt"})
		return Delivery{}, false
	}

	txID := receipt.Transaction.ID
	return Delivery{
		Data:    &receipt,
		Attempt: attempt,
		Ack: func() {
			if err := q.client.XAck(context.Background(), StreamKey, ConsumerGroupName, msg.ID).Err(); err != nil {
				q.log.Error("ack receipt failed", zap.String("transaction_id", txID), zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if !requeue || attempt >= q.cfg.MaxAttempts {
				q.log.Error("receipt undeliverable, moved to dead letters",
					zap.String("transaction_id", txID), zap.Int("attempts", attempt))
				q.deadLetter(msg.ID, txID, DeadLetter{Receipt: &receipt, Attempts: attempt, Reason: "dispatch failed"})
				return
			}
			backoff := time.Duration(attempt) * q.cfg.RetryBackoff
			q.log.Info("receipt dispatch failed, retry scheduled",
				zap.String("transaction_id", txID), zap.Int("attempt", attempt), zap.Duration("backoff", backoff))
			time.AfterFunc(backoff, func() { q.retry(msg.ID, payload, txID, attempt+1) })
		},
	}, true
}

// retry 重新發佈為新 entry 並 ack 舊 entry；失敗時舊 entry 仍在 PEL，由 recover 接手
func (q *RedisStreamReceiptQueueImpl) retry(msgID, payload, txID string, attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, q.entry(payload, txID, attempt))
		pipe.XAck(ctx, StreamKey, ConsumerGroupName, msgID)
		return nil
	})
	if err != nil {
		q.log.Error("requeue receipt failed", zap.String("transaction_id", txID), zap.Error(err))
	}
}

func (q *RedisStreamReceiptQueueImpl) deadLetter(msgID, key string, dl DeadLetter) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dl.FailedAt = time.Now().UTC()
	data, err := json.Marshal(dl)
	if err != nil {
		q.log.Error("marshal dead letter failed", zap.String("key", key), zap.Error(err))
		return
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, DeadLetterKey, key, data)
		pipe.XAck(ctx, StreamKey, ConsumerGroupName, msgID)
		return nil
	})
	if err != nil {
		q.log.Error("store dead letter failed", zap.String("key", key), zap.Error(err))
	}
}

// DeadLetters 讀取所有無法寄送的收據，key 為交易編號
func DeadLetters(ctx context.Context, client *redis.Client) (map[string]DeadLetter, error) {
	raw, err := client.HGetAll(ctx, DeadLetterKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]DeadLetter, len(raw))
	for key, v := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(v), &dl); err != nil {
			return nil, fmt.Errorf("unmarshal dead letter %s: %w", key, err)
		}
		out[key] = dl
	}
	return out, nil
}
