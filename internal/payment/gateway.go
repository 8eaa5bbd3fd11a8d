// Package payment 模擬行動支付付款與退款。沒有拒絕付款的路徑，只會因 context 取消或逾時而失敗。
package payment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
)

const (
	// ProviderTag 交易編號前綴
	ProviderTag = "NOTPAY"

	maxTransactionNumber = 999999
)

// ChargeRequest 付款請求
type ChargeRequest struct {
	Method model.PaymentMethod
	Amount int
}

// RefundRequest 退款請求
type RefundRequest struct {
	Method model.PaymentMethod
	Amount int
}

type Gateway interface {
	// 付款：成功時回傳 confirmed 交易
	Charge(ctx context.Context, req ChargeRequest) (*model.Transaction, error)
	// 退款：成功時回傳 refunded 交易
	Refund(ctx context.Context, req RefundRequest) (*model.Transaction, error)
}

// IntnSource 交易編號亂數來源
type IntnSource interface {
	Intn(n int) int
}

type lockedSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRand(seed int64) IntnSource {
	return &lockedSource{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedSource) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

type SimulatedGatewayImpl struct {
	latency time.Duration
	rng     IntnSource
	now     func() time.Time
}

func NewSimulatedGateway(latency time.Duration, rng IntnSource) Gateway {
	if rng == nil {
		rng = NewRand(time.Now().UnixNano())
	}
	return &SimulatedGatewayImpl{
		latency: latency,
		rng:     rng,
		now:     time.Now,
	}
}

func (g *SimulatedGatewayImpl) Charge(ctx context.Context, req ChargeRequest) (*model.Transaction, error) {
	if !req.Method.IsValid() {
		return nil, apperrors.ErrInvalidPaymentMethod
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return &model.Transaction{
		ID:          g.newTransactionID(),
		Method:      req.Method,
		Amount:      req.Amount,
		Outcome:     model.TransactionConfirmed,
		ProcessedAt: g.now().UTC(),
	}, nil
}

func (g *SimulatedGatewayImpl) Refund(ctx context.Context, req RefundRequest) (*model.Transaction, error) {
	if err := g.wait(ctx); err != nil {
		return nil, err
	}
	return &model.Transaction{
		ID:          g.newTransactionID(),
		Method:      req.Method,
		Amount:      req.Amount,
		Outcome:     model.TransactionRefunded,
		ProcessedAt: g.now().UTC(),
	}, nil
}

// wait 模擬金流處理延遲
func (g *SimulatedGatewayImpl) wait(ctx context.Context) error {
	if g.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *SimulatedGatewayImpl) newTransactionID() string {
	return fmt.Sprintf("%s-%d", ProviderTag, g.rng.Intn(maxTransactionNumber))
}
