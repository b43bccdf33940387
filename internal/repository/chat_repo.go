package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/models"
)

// ErrNotFound covers both a missing conversation and a caller who is not a
// participant: participant-filtered lookups deliberately cannot tell the two
// apart, so existence never leaks to outsiders.
var ErrNotFound = errors.New("chat not found")

// Store is the persistence surface for conversations. Mongo backs it in
// production; an in-memory implementation backs the tests.
type Store interface {
	// Create inserts a conversation for the appointment, or returns the
	// existing one with created=false. Never an error on duplicates.
	Create(ctx context.Context, appointmentID, doctorID, patientID primitive.ObjectID) (chat *models.Chat, created bool, err error)

	// FindByAppointmentForUser returns the conversation only when userID is
	// one of its two participants; otherwise ErrNotFound.
	FindByAppointmentForUser(ctx context.Context, appointmentID, userID primitive.ObjectID) (*models.Chat, error)

	// FindByID looks a conversation up by its own id with no participant
	// filter; the caller decides between 404 and 403.
	FindByID(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error)

	// AppendMessage atomically pushes one message and bumps last_updated in a
	// single participant-filtered update. Returns the conversation as updated
	// and the stored message. ErrNotFound when the sender is not a participant
	// or the conversation does not exist.
	AppendMessage(ctx context.Context, appointmentID, senderID primitive.ObjectID, body string) (*models.Chat, *models.Message, error)

	// ListForUser returns every conversation the user participates in,
	// most recently updated first.
	ListForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Chat, error)

	// Touch bumps last_updated on a conversation the user participates in.
	Touch(ctx context.Context, chatID, userID primitive.ObjectID) error
}

type mongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) Store {
	return &mongoStore{coll: coll}
}

func participantFilter(userID primitive.ObjectID) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"doctor_id": userID},
		bson.M{"patient_id": userID},
	}}
}

func (s *mongoStore) Create(ctx context.Context, appointmentID, doctorID, patientID primitive.ObjectID) (*models.Chat, bool, error) {
	now := time.Now().UTC()
	chat := &models.Chat{
		AppointmentID: appointmentID,
		DoctorID:      doctorID,
		PatientID:     patientID,
		Messages:      []models.Message{},
		LastUpdated:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := s.coll.InsertOne(ctx, chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			var existing models.Chat
			if ferr := s.coll.FindOne(ctx, bson.M{"appointment_id": appointmentID}).Decode(&existing); ferr != nil {
				return nil, false, ferr
			}
			return &existing, false, nil
		}
		return nil, false, err
	}
	chat.ID = res.InsertedID.(primitive.ObjectID)
	return chat, true, nil
}

func (s *mongoStore) FindByAppointmentForUser(ctx context.Context, appointmentID, userID primitive.ObjectID) (*models.Chat, error) {
	filter := participantFilter(userID)
	filter["appointment_id"] = appointmentID

	var chat models.Chat
	if err := s.coll.FindOne(ctx, filter).Decode(&chat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (s *mongoStore) FindByID(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	if err := s.coll.FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (s *mongoStore) AppendMessage(ctx context.Context, appointmentID, senderID primitive.ObjectID, body string) (*models.Chat, *models.Message, error) {
	now := time.Now().UTC()
	msg := models.Message{SenderID: senderID, Body: body, Timestamp: now}

	filter := participantFilter(senderID)
	filter["appointment_id"] = appointmentID

	// $push keeps concurrent sends from clobbering each other: the append and
	// the last_updated bump land in one atomic document update.
	update := bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"last_updated": now, "updated_at": now},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Chat
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return &updated, &msg, nil
}

func (s *mongoStore) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]*models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_updated", Value: -1}})
	cur, err := s.coll.Find(ctx, participantFilter(userID), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*models.Chat
	for cur.Next(ctx) {
		var c models.Chat
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

func (s *mongoStore) Touch(ctx context.Context, chatID, userID primitive.ObjectID) error {
	filter := participantFilter(userID)
	filter["_id"] = chatID

	now := time.Now().UTC()
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"last_updated": now, "updated_at": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
