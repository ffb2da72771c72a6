package persistence

import "time"

// HandlerFailureModel represents the handler_failures table
type HandlerFailureModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	MediatorID  string    `gorm:"column:mediator_id;not null;index"`
	Kind        string    `gorm:"column:kind;not null"`
	MessageType string    `gorm:"column:message_type;not null;index"`
	Handler     string    `gorm:"column:handler;not null;index"`
	GroupID     int       `gorm:"column:execution_group;not null"`
	Error       string    `gorm:"column:error;type:text;not null"`
	Panicked    bool      `gorm:"column:panicked;not null;default:false"`
	Occurrences int       `gorm:"column:occurrences;not null;default:1"`
	OccurredAt  time.Time `gorm:"column:occurred_at;not null;index"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;not null"`
}

func (HandlerFailureModel) TableName() string {
	return "handler_failures"
}
