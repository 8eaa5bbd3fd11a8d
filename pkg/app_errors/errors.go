package apperrors

import "errors"

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTicketFullyBooked = errors.New("ticket fully booked")
	ErrInvalidInput      = errors.New("invalid input")

	// 搜尋條件
	ErrMissingFields = errors.New("missing search fields")
	ErrSameCity      = errors.New("departure equals destination")
	ErrTimeOrder     = errors.New("arrival time not after departure time")
	ErrInvalidDate   = errors.New("invalid travel date")
	ErrDateInPast    = errors.New("travel date in the past")
	ErrUnknownHour   = errors.New("time outside the hour schedule")

	// 乘客資料
	ErrInvalidFirstName    = errors.New("invalid first name")
	ErrInvalidLastName     = errors.New("invalid last name")
	ErrInvalidIdentityCode = errors.New("invalid identity code")
	ErrInvalidGender       = errors.New("invalid gender")
	ErrInvalidCivility     = errors.New("invalid civility")
	ErrInvalidEmail        = errors.New("invalid email")
	ErrInvalidPhone        = errors.New("invalid phone")

	// 座位
	ErrSeatNotFound   = errors.New("seat not found")
	ErrSeatOccupied   = errors.New("seat occupied")
	ErrNoSeatSelected = errors.New("no seat selected")

	// 付款
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrPaymentTimeout       = errors.New("payment timed out")
	ErrRefundTimeout        = errors.New("refund timed out")

	// 庫存查詢
	ErrInventoryUnavailable = errors.New("inventory lookup failed")
	ErrLookupTimeout        = errors.New("inventory lookup timed out")

	// 流程
	ErrSessionNotFound    = errors.New("reservation session not found")
	ErrMissingContext     = errors.New("reservation context missing")
	ErrInvalidTransition  = errors.New("invalid step transition")
	ErrSessionTerminated  = errors.New("reservation session already terminated")
	ErrConfirmationNotSet = errors.New("confirmation not available")
)
