package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is embedded in its Chat document and never gets its own _id.
// Once appended it is immutable.
type Message struct {
	SenderID  primitive.ObjectID `bson:"sender_id" json:"senderId"`
	Body      string             `bson:"message" json:"message"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Chat holds the full conversation for one appointment: exactly one document
// per appointment, two fixed participants, append-only messages array.
type Chat struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AppointmentID primitive.ObjectID `bson:"appointment_id" json:"appointmentId"`
	DoctorID      primitive.ObjectID `bson:"doctor_id" json:"doctorId"`
	PatientID     primitive.ObjectID `bson:"patient_id" json:"patientId"`
	Messages      []Message          `bson:"messages" json:"messages"`
	LastUpdated   time.Time          `bson:"last_updated" json:"lastUpdated"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updatedAt"`
}

func (c *Chat) HasParticipant(userID primitive.ObjectID) bool {
	return c.DoctorID == userID || c.PatientID == userID
}

// LastMessage returns the tail of the messages array, nil when empty.
func (c *Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// RecentMessages returns up to n trailing messages in chronological order.
func (c *Chat) RecentMessages(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return []Message{}
	}
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(c.Messages)-start)
	copy(out, c.Messages[start:])
	return out
}
