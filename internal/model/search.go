package model

// DateLayout 日期格式 (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// Cities 可選的出發/抵達城市
var Cities = []string{
	"Douala",
	"Yaoundé",
	"Bafoussam",
	"Buea",
	"Ngaoundéré",
	"Bertoua",
}

// Hours 固定的時刻表（每小時一班）
var Hours = []string{
	"05:00", "06:00", "07:00", "08:00", "09:00",
	"10:00", "11:00", "12:00", "13:00", "14:00",
	"15:00", "16:00", "17:00", "18:00", "19:00",
	"20:00",
}

// IsScheduledHour 檢查時間是否屬於時刻表
func IsScheduledHour(h string) bool {
	for _, v := range Hours {
		if v == h {
			return true
		}
	}
	return false
}

// SearchForm 搜尋表單原始輸入
type SearchForm struct {
	Departure     string `json:"departure"`
	Destination   string `json:"destination"`
	Date          string `json:"date"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
}

// SearchCriteria 通過驗證的搜尋條件
type SearchCriteria struct {
	Departure     string `json:"departure"`
	Destination   string `json:"destination"`
	Date          string `json:"date"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
}

// Route 轉成庫存查詢參數
func (c SearchCriteria) Route() RouteQuery {
	return RouteQuery{
		DepartureCity:   c.Departure,
		DestinationCity: c.Destination,
		Date:            c.Date,
	}
}

// RouteQuery 庫存查詢請求
type RouteQuery struct {
	DepartureCity   string `json:"departure_city"`
	DestinationCity string `json:"destination_city"`
	Date            string `json:"date"`
}
