package validation

import (
	"strings"
	"time"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
)

const (
	MsgMissingFields = "Please fill in all fields before booking."
	MsgSameCity      = "Departure and destination must be different."
	MsgTimeOrder     = "Arrival time must be after departure time."
	MsgInvalidDate   = "Please choose a valid travel date (YYYY-MM-DD)."
	MsgDateInPast    = "Travel date cannot be in the past."
	MsgUnknownHour   = "Please choose departure and arrival times from the schedule."
)

// ValidateSearch 驗證搜尋表單。規則順序：
//  1. 所有欄位必填
//  2. 出發地與目的地不同
//  3. 抵達時間晚於出發時間
//  4. 日期格式正確且不早於今天
//  5. 時間屬於固定時刻表
func ValidateSearch(form model.SearchForm, today time.Time) (model.SearchCriteria, error) {
	criteria := model.SearchCriteria{
		Departure:     strings.TrimSpace(form.Departure),
		Destination:   strings.TrimSpace(form.Destination),
		Date:          strings.TrimSpace(form.Date),
		DepartureTime: strings.TrimSpace(form.DepartureTime),
		ArrivalTime:   strings.TrimSpace(form.ArrivalTime),
	}

	if criteria.Departure == "" || criteria.Destination == "" || criteria.Date == "" ||
		criteria.DepartureTime == "" || criteria.ArrivalTime == "" {
		return model.SearchCriteria{}, fieldError("search", apperrors.ErrMissingFields, MsgMissingFields)
	}

	if strings.EqualFold(criteria.Departure, criteria.Destination) {
		return model.SearchCriteria{}, fieldError("destination", apperrors.ErrSameCity, MsgSameCity)
	}

	// 時刻表為零補位的 HH:MM，字典序即時間序
	if criteria.ArrivalTime <= criteria.DepartureTime {
		return model.SearchCriteria{}, fieldError("arrival_time", apperrors.ErrTimeOrder, MsgTimeOrder)
	}

	date, err := time.Parse(model.DateLayout, criteria.Date)
	if err != nil {
		return model.SearchCriteria{}, fieldError("date", apperrors.ErrInvalidDate, MsgInvalidDate)
	}
	y, m, d := today.Date()
	if date.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
		return model.SearchCriteria{}, fieldError("date", apperrors.ErrDateInPast, MsgDateInPast)
	}

	if !model.IsScheduledHour(criteria.DepartureTime) || !model.IsScheduledHour(criteria.ArrivalTime) {
		return model.SearchCriteria{}, fieldError("departure_time", apperrors.ErrUnknownHour, MsgUnknownHour)
	}

	return criteria, nil
}
