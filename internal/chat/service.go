package chat

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/directory"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/events"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/metrics"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/models"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/repository"
)

const historyLimit = 50

// Directory resolves display profiles. Failures fall back to generic labels
// and never block chat flows.
type Directory interface {
	Lookup(ctx context.Context, id string, role auth.Role) (directory.Profile, error)
}

// Presence reports whether a user currently holds a live socket.
type Presence interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// EventPublisher receives a MessageSent event after each durable append.
type EventPublisher interface {
	PublishMessageSent(ctx context.Context, ev events.MessageSent) error
}

// Broadcaster fans an event out to every socket joined to a room. The append
// has already been persisted by the time Broadcast runs, so live and REST
// readers observe messages in commit order.
type Broadcaster interface {
	Broadcast(room, event string, payload interface{})
}

// Service enforces the participant rule in front of the store and owns the
// recent-first paging and search semantics. dir, presence, publisher and
// broadcaster may all be nil.
type Service struct {
	store       repository.Store
	dir         Directory
	presence    Presence
	publisher   EventPublisher
	broadcaster Broadcaster
	log         *zap.SugaredLogger
}

func NewService(store repository.Store, dir Directory, presence Presence, publisher EventPublisher, broadcaster Broadcaster, log *zap.SugaredLogger) *Service {
	return &Service{
		store:       store,
		dir:         dir,
		presence:    presence,
		publisher:   publisher,
		broadcaster: broadcaster,
		log:         log,
	}
}

func parseID(hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

// Create makes the conversation for an appointment, or returns the existing
// one (created=false). The caller must be one of the two named participants.
func (s *Service) Create(ctx context.Context, ident auth.Identity, appointmentID, doctorID, patientID string) (*models.Chat, bool, error) {
	apptOID, err := parseID(appointmentID)
	if err != nil {
		return nil, false, err
	}
	doctorOID, err := parseID(doctorID)
	if err != nil {
		return nil, false, err
	}
	patientOID, err := parseID(patientID)
	if err != nil {
		return nil, false, err
	}
	if ident.ID != doctorID && ident.ID != patientID {
		return nil, false, ErrForbidden
	}
	return s.store.Create(ctx, apptOID, doctorOID, patientOID)
}

// History returns one end-anchored page of a conversation the caller
// participates in. Non-participants get ErrNotFound, never ErrForbidden.
func (s *Service) History(ctx context.Context, ident auth.Identity, appointmentID string, page, limit int) (*HistoryPage, error) {
	apptOID, err := parseID(appointmentID)
	if err != nil {
		return nil, err
	}
	callerOID, err := parseID(ident.ID)
	if err != nil {
		return nil, err
	}
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPagination
	}

	c, err := s.store.FindByAppointmentForUser(ctx, apptOID, callerOID)
	if err != nil {
		return nil, err
	}

	total := len(c.Messages)
	totalPages := (total + limit - 1) / limit
	return &HistoryPage{
		Chat:          s.buildInfo(ctx, c),
		Messages:      pageNewestFirst(c.Messages, page, limit),
		TotalMessages: total,
		CurrentPage:   page,
		TotalPages:    totalPages,
		HasMore:       total-page*limit > 0,
	}, nil
}

// Send validates and durably appends a message, then fans it out to the live
// room and publishes a message-sent event. Returns the stored message and the
// conversation's new message count.
func (s *Service) Send(ctx context.Context, ident auth.Identity, appointmentID, body string) (*models.Message, int, error) {
	apptOID, err := parseID(appointmentID)
	if err != nil {
		return nil, 0, err
	}
	senderOID, err := parseID(ident.ID)
	if err != nil {
		return nil, 0, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, 0, ErrEmptyMessage
	}

	c, msg, err := s.store.AppendMessage(ctx, apptOID, senderOID, body)
	if err != nil {
		return nil, 0, err
	}
	metrics.MessagesSent.Inc()

	// Persisted first, broadcast second: room members see commit order.
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(appointmentID, "new-message", NewMessage{
			SenderID:   ident.ID,
			Body:       msg.Body,
			Timestamp:  msg.Timestamp,
			SenderType: ident.Role,
		})
	}
	s.publishMessageSent(c, msg, ident)

	return msg, len(c.Messages), nil
}

func (s *Service) publishMessageSent(c *models.Chat, msg *models.Message, ident auth.Identity) {
	if s.publisher == nil {
		return
	}
	ev := events.MessageSent{
		ChatID:        c.ID.Hex(),
		AppointmentID: c.AppointmentID.Hex(),
		SenderID:      ident.ID,
		SenderRole:    string(ident.Role),
		Body:          msg.Body,
		Timestamp:     msg.Timestamp,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.publisher.PublishMessageSent(ctx, ev); err != nil {
			s.log.Warnw("publish message-sent event", "appointment", ev.AppointmentID, "err", err)
		}
	}()
}

// Search runs a case-insensitive substring search over a conversation the
// caller participates in, newest matches first.
func (s *Service) Search(ctx context.Context, ident auth.Identity, appointmentID, term string, limit int) (*SearchResult, error) {
	apptOID, err := parseID(appointmentID)
	if err != nil {
		return nil, err
	}
	callerOID, err := parseID(ident.ID)
	if err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptySearchTerm
	}

	c, err := s.store.FindByAppointmentForUser(ctx, apptOID, callerOID)
	if err != nil {
		return nil, err
	}
	matches := searchNewestFirst(c.Messages, term, limit)
	return &SearchResult{
		Messages:     matches,
		SearchTerm:   term,
		TotalMatches: len(matches),
		Chat:         s.buildInfo(ctx, c),
	}, nil
}

// ListForUser returns every conversation the caller participates in, most
// recently updated first, with last message and message count.
func (s *Service) ListForUser(ctx context.Context, ident auth.Identity) ([]Summary, error) {
	callerOID, err := parseID(ident.ID)
	if err != nil {
		return nil, err
	}
	chats, err := s.store.ListForUser(ctx, callerOID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(chats))
	for _, c := range chats {
		out = append(out, Summary{
			ChatInfo:     s.buildInfo(ctx, c),
			LastMessage:  c.LastMessage(),
			MessageCount: len(c.Messages),
		})
	}
	return out, nil
}

// GetByID is the by-chat-id lookup. Unlike the appointment-keyed reads it
// distinguishes a missing conversation (ErrNotFound) from a caller who is not
// a participant (ErrForbidden).
func (s *Service) GetByID(ctx context.Context, ident auth.Identity, chatID string) (*ChatDetail, error) {
	chatOID, err := parseID(chatID)
	if err != nil {
		return nil, err
	}
	callerOID, err := parseID(ident.ID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.FindByID(ctx, chatOID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(callerOID) {
		return nil, ErrForbidden
	}
	return &ChatDetail{ChatInfo: s.buildInfo(ctx, c), Messages: c.Messages}, nil
}

// MarkRead bumps last_updated. No per-participant read state is tracked.
func (s *Service) MarkRead(ctx context.Context, ident auth.Identity, chatID string) error {
	chatOID, err := parseID(chatID)
	if err != nil {
		return err
	}
	callerOID, err := parseID(ident.ID)
	if err != nil {
		return err
	}
	return s.store.Touch(ctx, chatOID, callerOID)
}

// Join authorizes a socket against a conversation and returns the last 50
// messages in chronological order plus the room's display info.
func (s *Service) Join(ctx context.Context, ident auth.Identity, appointmentID string) (*JoinResult, error) {
	apptOID, err := parseID(appointmentID)
	if err != nil {
		return nil, err
	}
	callerOID, err := parseID(ident.ID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.FindByAppointmentForUser(ctx, apptOID, callerOID)
	if err != nil {
		return nil, err
	}
	return &JoinResult{
		History: c.RecentMessages(historyLimit),
		Info:    s.buildInfo(ctx, c),
	}, nil
}

func (s *Service) buildInfo(ctx context.Context, c *models.Chat) ChatInfo {
	return ChatInfo{
		ID:            c.ID.Hex(),
		AppointmentID: c.AppointmentID.Hex(),
		Doctor:        s.participantInfo(ctx, c.DoctorID, auth.RoleDoctor),
		Patient:       s.participantInfo(ctx, c.PatientID, auth.RolePatient),
		LastUpdated:   c.LastUpdated,
	}
}

func (s *Service) participantInfo(ctx context.Context, id primitive.ObjectID, role auth.Role) ParticipantInfo {
	info := ParticipantInfo{ID: id.Hex(), Name: fallbackName(role)}
	if s.dir != nil {
		if p, err := s.dir.Lookup(ctx, info.ID, role); err == nil {
			if p.Name != "" {
				info.Name = p.Name
			}
			info.Email = p.Email
		} else {
			s.log.Debugw("profile lookup failed, using fallback", "user", info.ID, "role", role, "err", err)
		}
	}
	if s.presence != nil {
		if online, err := s.presence.IsOnline(ctx, info.ID); err == nil {
			info.Online = online
		}
	}
	return info
}

func fallbackName(role auth.Role) string {
	switch role {
	case auth.RoleDoctor:
		return "Doctor"
	case auth.RolePatient:
		return "Patient"
	default:
		return "User"
	}
}
