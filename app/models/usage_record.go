package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSON is a type for storing free-form JSON data in the database
type JSON json.RawMessage

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// Usage record lifecycle states. Transitions only move forward:
// queued -> processing -> completed | failed.
const (
	UsageStatusQueued     = "queued"
	UsageStatusProcessing = "processing"
	UsageStatusCompleted  = "completed"
	UsageStatusFailed     = "failed"
)

// UsageRecord is the durable audit row for a single processing attempt.
// The broker job is ephemeral; this record is the system of record.
type UsageRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"type:char(36) CHARACTER SET utf8 COLLATE utf8_bin;uniqueIndex;not null" json:"uuid"`
	UserID    uint      `gorm:"index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ToolName  string    `gorm:"type:varchar(100);index;not null" json:"tool_name"`
	Status    string    `gorm:"type:varchar(50);default:'queued';index" json:"status"`
	Meta      *JSON     `gorm:"type:json" json:"meta"`
	ResultURL string    `gorm:"type:varchar(500)" json:"result_url"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// usageStatusRank orders the lifecycle states for the monotonic check.
var usageStatusRank = map[string]int{
	UsageStatusQueued:     0,
	UsageStatusProcessing: 1,
	UsageStatusCompleted:  2,
	UsageStatusFailed:     2,
}

// CanTransitionUsageStatus reports whether a record may move from one
// status to another. Records never regress to an earlier state and
// terminal states are immutable.
func CanTransitionUsageStatus(from, to string) bool {
	fromRank, ok := usageStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := usageStatusRank[to]
	if !ok {
		return false
	}
	if fromRank >= 2 {
		return false
	}
	return toRank > fromRank
}

// IsTerminal reports whether the record reached a final state
func (r *UsageRecord) IsTerminal() bool {
	return r.Status == UsageStatusCompleted || r.Status == UsageStatusFailed
}

// NewUsageMeta marshals submitted options plus the original file name
// into the free-form meta blob stored with the record.
func NewUsageMeta(originalName string, options map[string]string) (*JSON, error) {
	payload := map[string]interface{}{
		"original_name": originalName,
		"options":       options,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	meta := JSON(data)
	return &meta, nil
}
