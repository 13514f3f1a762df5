package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is stored as a JSON array in a text column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

func (l *StringList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// MFAConfiguration holds a user's TOTP enrolment. Secret is encrypted with
// the user id as associated data; BackupCodes holds SHA-256 digests of the
// unused backup codes.
type MFAConfiguration struct {
	UserID      string     `gorm:"column:user_id;primaryKey" json:"user_id"`
	Secret      []byte     `gorm:"column:secret" json:"-"`
	Enabled     bool       `gorm:"column:enabled" json:"enabled"`
	BackupCodes StringList `gorm:"column:backup_codes" json:"-"`
	VerifiedAt  *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (MFAConfiguration) TableName() string {
	return "mfa_configurations"
}
