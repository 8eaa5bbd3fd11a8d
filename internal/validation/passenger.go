package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go-gin-bus-reservation/internal/model"
	apperrors "go-gin-bus-reservation/pkg/app_errors"
)

const (
	MsgFirstName    = "First name must contain at least 2 characters."
	MsgLastName     = "Last name must contain at least 2 characters."
	MsgIdentityCode = "Identity code must be KIT followed by exactly 3 digits (e.g. KIT060)."
	MsgGender       = "Please select a gender."
	MsgCivility     = "Please select a civility."
	MsgEmail        = "Please enter a valid email address."
	MsgPhone        = "Please enter a valid phone number (10 to 13 digits)."
)

const minNameLength = 2

var (
	identityCodePattern = regexp.MustCompile(`^KIT[0-9]{3}$`)
	phonePattern        = regexp.MustCompile(`^\+?[0-9]{10,13}$`)
)

// ValidatePassenger 依固定順序驗證乘客欄位：
// 名、姓、身分代碼、性別、稱謂、email、電話。
func ValidatePassenger(form model.PassengerForm) (model.PassengerInfo, error) {
	info := model.PassengerInfo{
		FirstName:    strings.TrimSpace(form.FirstName),
		LastName:     strings.TrimSpace(form.LastName),
		IdentityCode: strings.TrimSpace(form.IdentityCode),
		Gender:       model.Gender(strings.ToLower(strings.TrimSpace(form.Gender))),
		Civility:     model.Civility(strings.TrimSpace(form.Civility)),
		Email:        strings.TrimSpace(form.Email),
		Phone:        stripSpaces(form.Phone),
	}

	if utf8.RuneCountInString(info.FirstName) < minNameLength {
		return model.PassengerInfo{}, fieldError("first_name", apperrors.ErrInvalidFirstName, MsgFirstName)
	}
	if utf8.RuneCountInString(info.LastName) < minNameLength {
		return model.PassengerInfo{}, fieldError("last_name", apperrors.ErrInvalidLastName, MsgLastName)
	}
	if !identityCodePattern.MatchString(info.IdentityCode) {
		return model.PassengerInfo{}, fieldError("identity_code", apperrors.ErrInvalidIdentityCode, MsgIdentityCode)
	}
	if !info.Gender.IsValid() {
		return model.PassengerInfo{}, fieldError("gender", apperrors.ErrInvalidGender, MsgGender)
	}
	if !info.Civility.IsValid() {
		return model.PassengerInfo{}, fieldError("civility", apperrors.ErrInvalidCivility, MsgCivility)
	}
	if err := validate.Var(info.Email, "required,email"); err != nil {
		return model.PassengerInfo{}, fieldError("email", apperrors.ErrInvalidEmail, MsgEmail)
	}
	if !phonePattern.MatchString(info.Phone) {
		return model.PassengerInfo{}, fieldError("phone", apperrors.ErrInvalidPhone, MsgPhone)
	}

	return info, nil
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
