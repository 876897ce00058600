package model

import "time"

// Link is one invite link. ID is the full link string and doubles as its identity.
type Link struct {
	ID             string     `json:"id" db:"id" gorm:"primaryKey;size:191"`
	ResourceID     string     `json:"resource_id" db:"resource_id" gorm:"size:64;not null;index:idx_links_owner"`
	AdminID        string     `json:"admin_id" db:"admin_id" gorm:"size:64;not null;index:idx_links_owner"`
	Title          string     `json:"title,omitempty" db:"title" gorm:"size:128"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty" db:"expires_at" gorm:"index"`
	UsageLimit     *int       `json:"usage_limit,omitempty" db:"usage_limit"`
	UsageCount     int        `json:"usage_count" db:"usage_count" gorm:"not null;default:0"`
	RequestedCount int        `json:"requested_count" db:"requested_count" gorm:"not null;default:0"`
	RequestNeeded  bool       `json:"request_needed" db:"request_needed" gorm:"not null;default:false"`
	IsPermanent    bool       `json:"permanent" db:"is_permanent" gorm:"not null;default:false"`
	IsRevoked      bool       `json:"revoked" db:"is_revoked" gorm:"not null;default:false;index"`
	IsExpired      bool       `json:"expired" db:"is_expired" gorm:"not null;default:false"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName pins the gorm table name.
func (Link) TableName() string {
	return "invite_links"
}

// LimitReached reports whether the usage limit, if any, is exhausted.
func (l Link) LimitReached() bool {
	return l.UsageLimit != nil && *l.UsageLimit > 0 && l.UsageCount >= *l.UsageLimit
}

// ExpiredAt reports whether the link is expired at t. The cached IsExpired flag wins.
func (l Link) ExpiredAt(t time.Time) bool {
	if l.IsExpired {
		return true
	}
	return l.ExpiresAt != nil && !l.ExpiresAt.After(t)
}

// Usable reports whether the link can still admit someone at t.
func (l Link) Usable(t time.Time) bool {
	return !l.IsRevoked && !l.ExpiredAt(t) && !l.LimitReached()
}
