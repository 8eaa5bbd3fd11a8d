package model

// TicketClass 票種
type TicketClass string

const (
	TicketClassStandard TicketClass = "standard"
	TicketClassVIP      TicketClass = "vip"
)

// IsValid 驗證票種是否有效
func (c TicketClass) IsValid() bool {
	switch c {
	case TicketClassStandard, TicketClassVIP:
		return true
	}
	return false
}

// Availability 剩餘座位比例區間
type Availability string

const (
	AvailabilityHigh   Availability = "high"
	AvailabilityMedium Availability = "medium"
	AvailabilityLow    Availability = "low"
)

// Ticket 票券模型（每次搜尋由庫存產生，之後不可變）
type Ticket struct {
	ID             int         `json:"id" db:"id"`
	Carrier        string      `json:"carrier" db:"carrier"`
	Class          TicketClass `json:"class" db:"class"`
	Price          int         `json:"price" db:"price"`
	TotalSeats     int         `json:"total_seats" db:"total_seats"`
	AvailableSeats int         `json:"available_seats" db:"available_seats"`
	Features       []string    `json:"features" db:"features"`
}

// IsFullyBooked 檢查是否已客滿
func (t *Ticket) IsFullyBooked() bool {
	return t.AvailableSeats <= 0
}

// IsValid 檢查票券欄位是否符合約束
func (t *Ticket) IsValid() bool {
	return t.Class.IsValid() &&
		t.Price > 0 &&
		t.TotalSeats > 0 &&
		t.AvailableSeats >= 0 &&
		t.AvailableSeats <= t.TotalSeats
}

// Availability 依剩餘比例分級：>50% high，>20% medium，其餘 low
func (t *Ticket) Availability() Availability {
	if t.TotalSeats <= 0 {
		return AvailabilityLow
	}
	switch {
	case t.AvailableSeats*2 > t.TotalSeats:
		return AvailabilityHigh
	case t.AvailableSeats*5 > t.TotalSeats:
		return AvailabilityMedium
	}
	return AvailabilityLow
}

// Clone 複製票券（含 features）
func (t Ticket) Clone() Ticket {
	if t.Features != nil {
		features := make([]string, len(t.Features))
		copy(features, t.Features)
		t.Features = features
	}
	return t
}

// TicketResponse 票券響應
type TicketResponse struct {
	Ticket
	FullyBooked  bool         `json:"fully_booked"`
	Availability Availability `json:"availability"`
}

// NewTicketResponse 組裝票券響應
func NewTicketResponse(t Ticket) TicketResponse {
	return TicketResponse{
		Ticket:       t,
		FullyBooked:  t.IsFullyBooked(),
		Availability: t.Availability(),
	}
}
