package model

// SeatPosition 座位位置
type SeatPosition string

const (
	SeatPositionLeft  SeatPosition = "left"
	SeatPositionRight SeatPosition = "right"
	SeatPositionAisle SeatPosition = "aisle"
)

// Seat 座位配置中的一格；走道不可預訂，ID 為空
type Seat struct {
	ID       string       `json:"id"`
	Row      int          `json:"row"`
	Position SeatPosition `json:"position"`
}

// IsBookable 是否為可預訂座位
func (s Seat) IsBookable() bool {
	return s.Position != SeatPositionAisle
}

// SeatMap 單一 session 的座位圖：配置、已佔用座位與目前選擇
type SeatMap struct {
	Class    TicketClass `json:"class"`
	Rows     int         `json:"rows"`
	Layout   []Seat      `json:"layout"`
	Occupied []string    `json:"occupied"`
	Selected string      `json:"selected,omitempty"`
}

// IsOccupied 檢查座位是否已被佔用
func (m *SeatMap) IsOccupied(seatID string) bool {
	for _, id := range m.Occupied {
		if id == seatID {
			return true
		}
	}
	return false
}

// HasSeat 檢查座位是否存在且可預訂
func (m *SeatMap) HasSeat(seatID string) bool {
	if seatID == "" {
		return false
	}
	for _, s := range m.Layout {
		if s.IsBookable() && s.ID == seatID {
			return true
		}
	}
	return false
}

// BookableCount 可預訂座位數
func (m *SeatMap) BookableCount() int {
	n := 0
	for _, s := range m.Layout {
		if s.IsBookable() {
			n++
		}
	}
	return n
}

// Clone 深拷貝
func (m SeatMap) Clone() SeatMap {
	layout := make([]Seat, len(m.Layout))
	copy(layout, m.Layout)
	occupied := make([]string, len(m.Occupied))
	copy(occupied, m.Occupied)
	m.Layout = layout
	m.Occupied = occupied
	return m
}

// SeatView 座位圖中單一座位的顯示狀態
type SeatView struct {
	Seat
	Occupied bool `json:"occupied"`
	Selected bool `json:"selected"`
}

// SeatMapResponse 座位圖響應
type SeatMapResponse struct {
	Class         TicketClass `json:"class"`
	Rows          int         `json:"rows"`
	BookableSeats int         `json:"bookable_seats"`
	Seats         []SeatView  `json:"seats"`
	Selected      string      `json:"selected,omitempty"`
}

// NewSeatMapResponse 組裝座位圖響應
func NewSeatMapResponse(m SeatMap) SeatMapResponse {
	seats := make([]SeatView, 0, len(m.Layout))
	for _, s := range m.Layout {
		seats = append(seats, SeatView{
			Seat:     s,
			Occupied: s.IsBookable() && m.IsOccupied(s.ID),
			Selected: s.IsBookable() && s.ID == m.Selected,
		})
	}
	return SeatMapResponse{
		Class:         m.Class,
		Rows:          m.Rows,
		BookableSeats: m.BookableCount(),
		Seats:         seats,
		Selected:      m.Selected,
	}
}
