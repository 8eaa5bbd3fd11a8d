package model

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod 付款管道
type PaymentMethod string

const (
	PaymentMethodMTN    PaymentMethod = "MTN"
	PaymentMethodOrange PaymentMethod = "Orange"
)

// PaymentMethods 可用的付款管道
var PaymentMethods = []PaymentMethod{PaymentMethodMTN, PaymentMethodOrange}

// IsValid 驗證付款管道是否有效
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodMTN, PaymentMethodOrange:
		return true
	}
	return false
}

// TransactionOutcome 交易結果
type TransactionOutcome string

const (
	TransactionConfirmed TransactionOutcome = "confirmed"
	TransactionRefunded  TransactionOutcome = "refunded"
)

// Transaction 付款或退款紀錄
type Transaction struct {
	ID          string             `json:"id"`
	Method      PaymentMethod      `json:"method,omitempty"`
	Amount      int                `json:"amount"`
	Outcome     TransactionOutcome `json:"outcome"`
	ProcessedAt time.Time          `json:"processed_at"`
}

// Confirmation 付款成功後產生的確認憑證，可編碼為 QR code
type Confirmation struct {
	Name          string      `json:"name"`
	Departure     string      `json:"departure"`
	Destination   string      `json:"destination"`
	Date          string      `json:"date"`
	Carrier       string      `json:"bus"`
	Time          string      `json:"time"`
	Price         int         `json:"price"`
	Class         TicketClass `json:"class"`
	Seat          string      `json:"seat"`
	TransactionID string      `json:"transaction_id"`
}

// Receipt 付款完成後發送給出票 worker 的訊息
type Receipt struct {
	SessionID    uuid.UUID    `json:"session_id"`
	Email        string       `json:"email"`
	Transaction  Transaction  `json:"transaction"`
	Confirmation Confirmation `json:"confirmation"`
}
