package model

// Gender 性別
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// IsValid 驗證性別是否有效
func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale:
		return true
	}
	return false
}

// Civility 稱謂
type Civility string

const (
	CivilityMr  Civility = "Mr"
	CivilityMrs Civility = "Mrs"
	CivilityMs  Civility = "Ms"
)

// IsValid 驗證稱謂是否有效
func (c Civility) IsValid() bool {
	switch c {
	case CivilityMr, CivilityMrs, CivilityMs:
		return true
	}
	return false
}

// PassengerForm 乘客表單原始輸入
type PassengerForm struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	IdentityCode string `json:"identity_code"`
	Gender       string `json:"gender"`
	Civility     string `json:"civility"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
}

// PassengerInfo 通過驗證的乘客資料
type PassengerInfo struct {
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	IdentityCode string   `json:"identity_code"`
	Gender       Gender   `json:"gender"`
	Civility     Civility `json:"civility"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
}

// FullName 姓名
func (p PassengerInfo) FullName() string {
	return p.FirstName + " " + p.LastName
}
