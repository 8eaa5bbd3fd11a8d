// Package seatmap 產生座位配置、模擬佔用座位並仲裁座位選擇。
//
// 每排有四個可預訂座位：走道左側 A、B，右側 C、D，中間一個不可預訂的走道。
// 座位 ID 為字母加排號，例如 "C7"。VIP 車 8 排，一般車 10 排。
package seatmap

import (
	"math"
	"math/rand"
	"strconv"
	"sync"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
)

const (
	StandardRows = 10
	VIPRows      = 8

	// DefaultOccupancyRate 預設約 30% 座位已被佔用
	DefaultOccupancyRate = 0.30
)

var (
	leftLetters  = []string{"A", "B"}
	rightLetters = []string{"C", "D"}
)

// Rand 佔用座位抽樣所需的亂數來源；*rand.Rand 即符合
type Rand interface {
	Perm(n int) []int
}

// lockedRand 可在多個 session 之間共用的亂數來源
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand 建立可指定 seed 的執行緒安全亂數來源
func NewRand(seed int64) Rand {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Perm(n int) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Perm(n)
}

// RowsFor 依票種決定排數
func RowsFor(class model.TicketClass) int {
	if class == model.TicketClassVIP {
		return VIPRows
	}
	return StandardRows
}

// GenerateLayout 產生座位配置，純函式，不含亂數
func GenerateLayout(class model.TicketClass) []model.Seat {
	rows := RowsFor(class)
	layout := make([]model.Seat, 0, rows*5)
	for row := 1; row <= rows; row++ {
		n := strconv.Itoa(row)
		for _, letter := range leftLetters {
			layout = append(layout, model.Seat{ID: letter + n, Row: row, Position: model.SeatPositionLeft})
		}
		layout = append(layout, model.Seat{Row: row, Position: model.SeatPositionAisle})
		for _, letter := range rightLetters {
			layout = append(layout, model.Seat{ID: letter + n, Row: row, Position: model.SeatPositionRight})
		}
	}
	return layout
}

// OccupancyCount floor(rate × bookable)
func OccupancyCount(bookable int, rate float64) int {
	if bookable <= 0 || rate <= 0 {
		return 0
	}
	if rate >= 1 {
		return bookable
	}
	// 1e-9 吸收 0.3*40 之類的浮點誤差
	return int(math.Floor(rate*float64(bookable) + 1e-9))
}

// SampleOccupancy 從可預訂座位中不重複抽出 floor(rate × 可預訂數) 個座位，
// 結果依配置順序排列。
func SampleOccupancy(layout []model.Seat, rate float64, rng Rand) []string {
	bookable := make([]string, 0, len(layout))
	for _, s := range layout {
		if s.IsBookable() {
			bookable = append(bookable, s.ID)
		}
	}

	k := OccupancyCount(len(bookable), rate)
	if k == 0 {
		return []string{}
	}

	picked := make(map[int]bool, k)
	for _, idx := range rng.Perm(len(bookable))[:k] {
		picked[idx] = true
	}

	occupied := make([]string, 0, k)
	for i, id := range bookable {
		if picked[i] {
			occupied = append(occupied, id)
		}
	}
	return occupied
}

// New 進入選位步驟時建立座位圖；佔用座位只在此時抽樣一次
func New(class model.TicketClass, rate float64, rng Rand) model.SeatMap {
	layout := GenerateLayout(class)
	return model.SeatMap{
		Class:    class,
		Rows:     RowsFor(class),
		Layout:   layout,
		Occupied: SampleOccupancy(layout, rate, rng),
	}
}

// SelectSeat 選擇座位並回傳新的座位圖；單選模式，會覆蓋先前的選擇。
// 座位不存在或已被佔用時回傳錯誤，原座位圖不變。
func SelectSeat(m model.SeatMap, seatID string) (model.SeatMap, error) {
	if !m.HasSeat(seatID) {
		return m, apperrors.ErrSeatNotFound
	}
	if m.IsOccupied(seatID) {
		return m, apperrors.ErrSeatOccupied
	}
	next := m.Clone()
	next.Selected = seatID
	return next, nil
}
