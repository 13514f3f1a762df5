package model

import "time"

// MemoryAction is an operation recorded in the memory access log
type MemoryAction string

const (
	ActionRead   MemoryAction = "read"
	ActionCreate MemoryAction = "create"
	ActionUpdate MemoryAction = "update"
	ActionDelete MemoryAction = "delete"
	ActionShare  MemoryAction = "share"
	ActionSearch MemoryAction = "search"
)

// MemoryAccessLog records an access decision. MemoryID is empty for searches.
type MemoryAccessLog struct {
	ID        string       `gorm:"column:id;primaryKey" json:"id"`
	MemoryID  *string      `gorm:"column:memory_id" json:"memory_id,omitempty"`
	UserID    *string      `gorm:"column:user_id" json:"user_id,omitempty"`
	Action    MemoryAction `gorm:"column:action" json:"action"`
	Granted   bool         `gorm:"column:granted" json:"granted"`
	IPAddress string       `gorm:"column:ip_address" json:"ip_address,omitempty"`
	Details   string       `gorm:"column:details" json:"details,omitempty"`
	CreatedAt time.Time    `gorm:"column:created_at" json:"created_at"`
}

func (MemoryAccessLog) TableName() string {
	return "memory_access_logs"
}
