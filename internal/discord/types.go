package discord

import (
	"fmt"
	"time"
)

const ChannelTypeDM = 1

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

type Guild struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Icon     string   `json:"icon,omitempty"`
	Owner    bool     `json:"owner,omitempty"`
	Features []string `json:"features,omitempty"`
}

type GuildDetail struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Icon                     string `json:"icon,omitempty"`
	Description              string `json:"description,omitempty"`
	OwnerID                  string `json:"owner_id,omitempty"`
	ApproximateMemberCount   int    `json:"approximate_member_count,omitempty"`
	ApproximatePresenceCount int    `json:"approximate_presence_count,omitempty"`
}

type Member struct {
	User     *User     `json:"user,omitempty"`
	Nick     string    `json:"nick,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	JoinedAt time.Time `json:"joined_at,omitempty"`
}

type Channel struct {
	ID         string  `json:"id"`
	Type       int     `json:"type"`
	Name       string  `json:"name,omitempty"`
	GuildID    string  `json:"guild_id,omitempty"`
	Position   int     `json:"position,omitempty"`
	ParentID   string  `json:"parent_id,omitempty"`
	Recipients []*User `json:"recipients,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	Author    *User     `json:"author,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// UpstreamError is a non-2xx Discord response with its decoded message.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("discord api error %d: %s", e.Status, e.Message)
}

// RateLimitError signals a 429 with the wait Discord asked for.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("discord rate limited, retry after %s", e.RetryAfter)
}
