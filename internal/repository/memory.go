package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/models"
)

// MemoryStore is a mutex-guarded Store used by tests and local development.
// It mirrors the Mongo store's semantics, including the atomicity of
// AppendMessage with respect to concurrent senders.
type MemoryStore struct {
	mu    sync.Mutex
	chats map[primitive.ObjectID]*models.Chat // keyed by appointment id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[primitive.ObjectID]*models.Chat)}
}

func (s *MemoryStore) Create(_ context.Context, appointmentID, doctorID, patientID primitive.ObjectID) (*models.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.chats[appointmentID]; ok {
		return copyChat(existing), false, nil
	}
	now := time.Now().UTC()
	chat := &models.Chat{
		ID:            primitive.NewObjectID(),
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     patientID,
		Messages:      []models.Message{},
		LastUpdated:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.chats[appointmentID] = chat
	return copyChat(chat), true, nil
}

func (s *MemoryStore) FindByAppointmentForUser(_ context.Context, appointmentID, userID primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[appointmentID]
	if !ok || !chat.HasParticipant(userID) {
		return nil, ErrNotFound
	}
	return copyChat(chat), nil
}

func (s *MemoryStore) FindByID(_ context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chat := range s.chats {
		if chat.ID == chatID {
			return copyChat(chat), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AppendMessage(_ context.Context, appointmentID, senderID primitive.ObjectID, body string) (*models.Chat, *models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[appointmentID]
	if !ok || !chat.HasParticipant(senderID) {
		return nil, nil, ErrNotFound
	}
	now := time.Now().UTC()
	msg := models.Message{SenderID: senderID, Body: body, Timestamp: now}
	chat.Messages = append(chat.Messages, msg)
	chat.LastUpdated = now
	chat.UpdatedAt = now
	return copyChat(chat), &msg, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID primitive.ObjectID) ([]*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Chat
	for _, chat := range s.chats {
		if chat.HasParticipant(userID) {
			out = append(out, copyChat(chat))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out, nil
}

func (s *MemoryStore) Touch(_ context.Context, chatID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chat := range s.chats {
		if chat.ID == chatID {
			if !chat.HasParticipant(userID) {
				return ErrNotFound
			}
			now := time.Now().UTC()
			chat.LastUpdated = now
			chat.UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}

func copyChat(c *models.Chat) *models.Chat {
	dup := *c
	dup.Messages = make([]models.Message, len(c.Messages))
	copy(dup.Messages, c.Messages)
	return &dup
}
