package model

// Admin is another administrator of a resource together with the number of links they created.
// Rows are aggregated from invite_links, there is no table of their own.
type Admin struct {
	AdminID      string `json:"admin_id" db:"admin_id"`
	InvitesCount int    `json:"invites_count" db:"invites_count"`
	RevokedCount int    `json:"revoked_invites_count" db:"revoked_count"`
}
