package model

import "time"

// Permission is what a grant allows on a memory
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// Valid reports whether p is a known permission
func (p Permission) Valid() bool {
	return p == PermissionRead || p == PermissionWrite
}

// MemoryGrant gives a user explicit access to a memory. A write grant
// implies read.
type MemoryGrant struct {
	MemoryID   string     `gorm:"column:memory_id;primaryKey" json:"memory_id"`
	UserID     string     `gorm:"column:user_id;primaryKey" json:"user_id"`
	Permission Permission `gorm:"column:permission" json:"permission"`
	GrantedBy  string     `gorm:"column:granted_by" json:"granted_by"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (MemoryGrant) TableName() string {
	return "memory_grants"
}
