// Package validation 檢查搜尋條件與乘客資料；依固定順序檢查，第一個失敗的規則勝出。
package validation

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FieldError 單一欄位規則失敗。Message 為給使用者的通知文字，Err 為規則 sentinel。
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldError(field string, err error, message string) *FieldError {
	return &FieldError{Field: field, Err: err, Message: message}
}
