package chat

import (
	"time"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/models"
)

// ParticipantInfo is the display view of one side of a conversation,
// enriched from the profile directory on a best-effort basis.
type ParticipantInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Online bool   `json:"online"`
}

type ChatInfo struct {
	ID            string          `json:"id"`
	AppointmentID string          `json:"appointmentId"`
	Doctor        ParticipantInfo `json:"doctor"`
	Patient       ParticipantInfo `json:"patient"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

// Summary is one row of a user's conversation list, newest activity first.
type Summary struct {
	ChatInfo
	LastMessage  *models.Message `json:"lastMessage"`
	MessageCount int             `json:"messageCount"`
}

// HistoryPage pages the conversation from the end: currentPage 1 holds the
// newest messages, and each page is ordered newest first.
type HistoryPage struct {
	Chat          ChatInfo         `json:"chat"`
	Messages      []models.Message `json:"messages"`
	TotalMessages int              `json:"totalMessages"`
	CurrentPage   int              `json:"currentPage"`
	TotalPages    int              `json:"totalPages"`
	HasMore       bool             `json:"hasMore"`
}

type SearchResult struct {
	Messages     []models.Message `json:"messages"`
	SearchTerm   string           `json:"searchTerm"`
	TotalMatches int              `json:"totalMatches"`
	Chat         ChatInfo         `json:"chat"`
}

// ChatDetail is the by-id view: metadata plus the full message log.
type ChatDetail struct {
	ChatInfo
	Messages []models.Message `json:"messages"`
}

// JoinResult is handed to a socket on a successful room join.
type JoinResult struct {
	History []models.Message
	Info    ChatInfo
}

// NewMessage is the fan-out payload for a freshly appended message.
type NewMessage struct {
	SenderID   string    `json:"senderId"`
	Body       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	SenderType auth.Role `json:"senderType"`
}
