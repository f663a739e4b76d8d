package sqlstore

import "time"

// ScopeModel is a registered tenant scope.
type ScopeModel struct {
	ID        string `gorm:"primaryKey;size:255"`
	CreatedAt time.Time
}

// TableName returns the table name for scopes.
func (ScopeModel) TableName() string { return "reference_scopes" }

// RecordModel is one reference record. A NULL object key means the record
// points at no object.
type RecordModel struct {
	ScopeID   string  `gorm:"primaryKey;size:255"`
	ID        string  `gorm:"primaryKey;size:255"`
	ObjectKey *string `gorm:"size:1024;index"`
	UpdatedAt time.Time
}

// TableName returns the table name for records.
func (RecordModel) TableName() string { return "reference_records" }

// AllModels returns the models managed by AutoMigrate.
func AllModels() []any {
	return []any{&ScopeModel{}, &RecordModel{}}
}
