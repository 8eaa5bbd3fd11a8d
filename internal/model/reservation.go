package model

import (
	"time"

	"github.com/google/uuid"
)

// Step 訂位流程步驟
type Step string

const (
	StepSearching      Step = "SEARCHING"
	StepListing        Step = "LISTING"
	StepTicketSelected Step = "TICKET_SELECTED"
	StepPassengerForm  Step = "PASSENGER_FORM"
	StepSeatSelection  Step = "SEAT_SELECTION"
	StepPayment        Step = "PAYMENT"
	StepConfirmed      Step = "CONFIRMED"
	StepCancelled      Step = "CANCELLED"
)

// IsValid 驗證步驟是否有效
func (s Step) IsValid() bool {
	switch s {
	case StepSearching, StepListing, StepTicketSelected, StepPassengerForm,
		StepSeatSelection, StepPayment, StepConfirmed, StepCancelled:
		return true
	}
	return false
}

// IsTerminal CONFIRMED 與 CANCELLED 為終止狀態
func (s Step) IsTerminal() bool {
	return s == StepConfirmed || s == StepCancelled
}

// CanTransitionTo 檢查是否可以轉換到目標步驟
func (s Step) CanTransitionTo(target Step) bool {
	transitions := map[Step][]Step{
		StepSearching:      {StepListing},
		StepListing:        {StepTicketSelected, StepSearching},
		StepTicketSelected: {StepPassengerForm, StepSearching},
		StepPassengerForm:  {StepSeatSelection, StepSearching},
		StepSeatSelection:  {StepPayment, StepSearching},
		StepPayment:        {StepConfirmed, StepCancelled, StepSearching},
		StepConfirmed:      {}, // 不能轉換到任何狀態
		StepCancelled:      {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, step := range allowed {
		if step == target {
			return true
		}
	}
	return false
}

// ReservationContext 在各步驟之間傳遞的累積資料。
// 以值傳遞；With* 方法回傳新的副本，不修改原本的值。
type ReservationContext struct {
	Search    *SearchCriteria `json:"search,omitempty"`
	Ticket    *Ticket         `json:"ticket,omitempty"`
	Passenger *PassengerInfo  `json:"passenger,omitempty"`
	SeatID    string          `json:"seat_id,omitempty"`
}

// WithSearch 新的搜尋會清除之後所有選擇
func (c ReservationContext) WithSearch(criteria SearchCriteria) ReservationContext {
	return ReservationContext{Search: &criteria}
}

// WithTicket 設定票券並清除之後的選擇
func (c ReservationContext) WithTicket(t Ticket) ReservationContext {
	ticket := t.Clone()
	c.Ticket = &ticket
	c.Passenger = nil
	c.SeatID = ""
	return c
}

// WithPassenger 設定乘客資料並清除座位
func (c ReservationContext) WithPassenger(p PassengerInfo) ReservationContext {
	c.Passenger = &p
	c.SeatID = ""
	return c
}

// WithSeat 設定座位
func (c ReservationContext) WithSeat(seatID string) ReservationContext {
	c.SeatID = seatID
	return c
}

// Satisfies 檢查進入某步驟所需的前置資料是否齊全
func (c ReservationContext) Satisfies(step Step) bool {
	switch step {
	case StepSearching:
		return true
	case StepListing:
		return c.Search != nil
	case StepTicketSelected, StepPassengerForm:
		return c.Search != nil && c.Ticket != nil
	case StepSeatSelection:
		return c.Search != nil && c.Ticket != nil && c.Passenger != nil
	case StepPayment, StepConfirmed, StepCancelled:
		return c.Search != nil && c.Ticket != nil && c.Passenger != nil && c.SeatID != ""
	}
	return false
}

// Session 單一訂位 session 的狀態，由目前步驟獨佔
type Session struct {
	ID           uuid.UUID          `json:"id"`
	Step         Step               `json:"step"`
	Context      ReservationContext `json:"context"`
	Tickets      []Ticket           `json:"tickets,omitempty"`
	SeatMap      *SeatMap           `json:"seat_map,omitempty"`
	Transaction  *Transaction       `json:"transaction,omitempty"`
	Confirmation *Confirmation      `json:"confirmation,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// IsTerminated 檢查 session 是否已結束
func (s *Session) IsTerminated() bool {
	return s.Step.IsTerminal()
}

// FindTicket 在本次搜尋結果中尋找票券
func (s *Session) FindTicket(id int) (Ticket, bool) {
	for _, t := range s.Tickets {
		if t.ID == id {
			return t, true
		}
	}
	return Ticket{}, false
}

// SessionResponse session 響應
type SessionResponse struct {
	ID           uuid.UUID          `json:"id"`
	Step         Step               `json:"step"`
	Context      ReservationContext `json:"context"`
	Tickets      []TicketResponse   `json:"tickets,omitempty"`
	Transaction  *Transaction       `json:"transaction,omitempty"`
	Confirmation *Confirmation      `json:"confirmation,omitempty"`
	UpdatedAt    string             `json:"updated_at"`
}

// NewSessionResponse 組裝 session 響應；座位圖由獨立端點提供
func NewSessionResponse(s *Session) SessionResponse {
	var tickets []TicketResponse
	if s.Step == StepListing {
		tickets = make([]TicketResponse, 0, len(s.Tickets))
		for _, t := range s.Tickets {
			tickets = append(tickets, NewTicketResponse(t))
		}
	}
	return SessionResponse{
		ID:           s.ID,
		Step:         s.Step,
		Context:      s.Context,
		Tickets:      tickets,
		Transaction:  s.Transaction,
		Confirmation: s.Confirmation,
		UpdatedAt:    s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
