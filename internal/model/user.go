package model

import "time"

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url,omitempty"`
	Timezone    string    `json:"timezone"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserRef is the minimal author info joined onto check-ins and memberships.
type UserRef struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Email       string  `json:"email,omitempty"`
}

// Identity is a verified external identity as reported by the auth provider.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   *string
}
