package model

import "time"

// LinkEvent records one change to an invite link. Events travel over NATS and end up in link_events.
type LinkEvent struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	Type       string `json:"type" gorm:"size:16;not null;index"`
	LinkID     string `json:"link_id" gorm:"size:191;not null;index"`
	ResourceID string `json:"resource_id" gorm:"size:64;not null"`
	AdminID    string `json:"admin_id" gorm:"size:64"`
	// ReplacedBy is set on replaced events and names the link that took over.
	ReplacedBy string    `json:"replaced_by,omitempty" gorm:"size:191"`
	Timestamp  time.Time `json:"timestamp" gorm:"index"`
}

// TableName pins the gorm table name.
func (LinkEvent) TableName() string {
	return "link_events"
}

const (
	LinkEventCreated  = "created"
	LinkEventEdited   = "edited"
	LinkEventRevoked  = "revoked"
	LinkEventReplaced = "replaced"
	LinkEventDeleted  = "deleted"
	LinkEventJoined   = "joined"
)

const (
	LinkStreamName     = "LINKS"
	LinkStreamSubject  = "links.events"
	LinkConsumerName   = "link-auditor"
	LinkStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
