package model

import "time"

type TeamRole string

const (
	TeamRoleAdmin  TeamRole = "ADMIN"
	TeamRoleMember TeamRole = "MEMBER"
)

type Team struct {
	ID         string    `json:"id"`
	Name       string    `json:"name" validate:"required"`
	LogoURL    *string   `json:"logo_url,omitempty"`
	InviteCode string    `json:"invite_code"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Membership struct {
	ID       string    `json:"id"`
	UserID   string    `json:"user_id"`
	TeamID   string    `json:"team_id"`
	Role     TeamRole  `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
	User     *UserRef  `json:"user,omitempty"`
}
