package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/giriraj-roy-7723/wellnest-chat/internal/auth"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/directory"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/events"
	"github.com/giriraj-roy-7723/wellnest-chat/internal/repository"
)

type stubDirectory struct {
	profiles map[string]directory.Profile
	err      error
}

func (d *stubDirectory) Lookup(_ context.Context, id string, _ auth.Role) (directory.Profile, error) {
	if d.err != nil {
		return directory.Profile{}, d.err
	}
	p, ok := d.profiles[id]
	if !ok {
		return directory.Profile{}, fmt.Errorf("no profile for %s", id)
	}
	return p, nil
}

type stubPresence struct {
	online map[string]bool
}

func (p *stubPresence) IsOnline(_ context.Context, userID string) (bool, error) {
	return p.online[userID], nil
}

type broadcastRecord struct {
	Room    string
	Event   string
	Payload interface{}
}

type recordingBroadcaster struct {
	mu      sync.Mutex
	records []broadcastRecord
	onEvent func(broadcastRecord)
}

func (b *recordingBroadcaster) Broadcast(room, event string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := broadcastRecord{Room: room, Event: event, Payload: payload}
	b.records = append(b.records, rec)
	if b.onEvent != nil {
		b.onEvent(rec)
	}
}

func (b *recordingBroadcaster) all() []broadcastRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broadcastRecord, len(b.records))
	copy(out, b.records)
	return out
}

type channelPublisher struct {
	ch chan events.MessageSent
}

func (p *channelPublisher) PublishMessageSent(_ context.Context, ev events.MessageSent) error {
	p.ch <- ev
	return nil
}

type fixture struct {
	store       *repository.MemoryStore
	svc         *Service
	broadcaster *recordingBroadcaster

	appointmentID string
	doctorID      string
	patientID     string
	doctor        auth.Identity
	patient       auth.Identity
	outsider      auth.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:         repository.NewMemoryStore(),
		broadcaster:   &recordingBroadcaster{},
		appointmentID: primitive.NewObjectID().Hex(),
		doctorID:      primitive.NewObjectID().Hex(),
		patientID:     primitive.NewObjectID().Hex(),
	}
	f.doctor = auth.Identity{ID: f.doctorID, Role: auth.RoleDoctor}
	f.patient = auth.Identity{ID: f.patientID, Role: auth.RolePatient}
	f.outsider = auth.Identity{ID: primitive.NewObjectID().Hex(), Role: auth.RolePatient}
	f.svc = NewService(f.store, nil, nil, nil, f.broadcaster, zap.NewNop().Sugar())
	return f
}

func (f *fixture) create(t *testing.T) {
	t.Helper()
	_, created, err := f.svc.Create(context.Background(), f.doctor, f.appointmentID, f.doctorID, f.patientID)
	require.NoError(t, err)
	require.True(t, created)
}

func TestCreateIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, created, err := f.svc.Create(context.Background(), f.doctor, f.appointmentID, f.doctorID, f.patientID)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.Create(context.Background(), f.patient, f.appointmentID, f.doctorID, f.patientID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateRejectsOutsider(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Create(context.Background(), f.outsider, f.appointmentID, f.doctorID, f.patientID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateRejectsMalformedIDs(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Create(context.Background(), f.doctor, "not-an-objectid", f.doctorID, f.patientID)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestSendRejectsEmptyBodyWithoutMutating(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	for _, body := range []string{"", "   ", "\n\t "} {
		_, _, err := f.svc.Send(context.Background(), f.patient, f.appointmentID, body)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}

	page, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 1, 50)
	require.NoError(t, err)
	assert.Zero(t, page.TotalMessages)
	assert.Empty(t, f.broadcaster.all())
}

func TestNonParticipantSeesNotFound(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.svc.History(context.Background(), f.outsider, f.appointmentID, 1, 50)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Search(context.Background(), f.outsider, f.appointmentID, "hello", 20)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.svc.Send(context.Background(), f.outsider, f.appointmentID, "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Join(context.Background(), f.outsider, f.appointmentID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetByIDDistinguishesMissingFromForbidden(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	chatDoc, _, err := f.svc.Create(context.Background(), f.doctor, f.appointmentID, f.doctorID, f.patientID)
	require.NoError(t, err)

	_, err = f.svc.GetByID(context.Background(), f.doctor, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetByID(context.Background(), f.outsider, chatDoc.ID.Hex())
	assert.ErrorIs(t, err, ErrForbidden)

	detail, err := f.svc.GetByID(context.Background(), f.patient, chatDoc.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, chatDoc.ID.Hex(), detail.ID)
}

func TestHistoryPagesFromTheEnd(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	for i := 0; i < 120; i++ {
		_, _, err := f.svc.Send(context.Background(), f.patient, f.appointmentID, fmt.Sprintf("msg-%03d", i))
		require.NoError(t, err)
	}

	page1, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 1, 50)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 50)
	assert.Equal(t, "msg-119", page1.Messages[0].Body)
	assert.Equal(t, "msg-070", page1.Messages[49].Body)
	assert.Equal(t, 120, page1.TotalMessages)
	assert.Equal(t, 3, page1.TotalPages)
	assert.True(t, page1.HasMore)

	page3, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 3, 50)
	require.NoError(t, err)
	require.Len(t, page3.Messages, 20)
	assert.Equal(t, "msg-019", page3.Messages[0].Body)
	assert.Equal(t, "msg-000", page3.Messages[19].Body)
	assert.False(t, page3.HasMore)

	page4, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 4, 50)
	require.NoError(t, err)
	assert.Empty(t, page4.Messages)
	assert.False(t, page4.HasMore)
}

func TestHistoryRejectsInvalidPagination(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 0, 50)
	assert.ErrorIs(t, err, ErrInvalidPagination)

	_, err = f.svc.History(context.Background(), f.doctor, f.appointmentID, 1, -1)
	assert.ErrorIs(t, err, ErrInvalidPagination)
}

func TestRestAndRealtimeViewsAgreeOnOrder(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	bodies := []string{"one", "two", "three", "four"}
	for _, b := range bodies {
		_, _, err := f.svc.Send(context.Background(), f.doctor, f.appointmentID, b)
		require.NoError(t, err)
	}

	join, err := f.svc.Join(context.Background(), f.patient, f.appointmentID)
	require.NoError(t, err)
	page, err := f.svc.History(context.Background(), f.patient, f.appointmentID, 1, 50)
	require.NoError(t, err)

	require.Len(t, join.History, len(bodies))
	require.Len(t, page.Messages, len(bodies))
	for i := range join.History {
		// chat-history is chronological, page 1 is newest first
		assert.Equal(t, join.History[i].Body, page.Messages[len(bodies)-1-i].Body)
	}
}

func TestSendBroadcastsAfterPersisting(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	var persistedAtBroadcast int
	f.broadcaster.onEvent = func(broadcastRecord) {
		page, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 1, 50)
		if err == nil {
			persistedAtBroadcast = page.TotalMessages
		}
	}

	_, total, err := f.svc.Send(context.Background(), f.patient, f.appointmentID, "Hello")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, persistedAtBroadcast, "message must be durable before fan-out")

	records := f.broadcaster.all()
	require.Len(t, records, 1)
	assert.Equal(t, f.appointmentID, records[0].Room)
	assert.Equal(t, "new-message", records[0].Event)

	payload, ok := records[0].Payload.(NewMessage)
	require.True(t, ok)
	assert.Equal(t, f.patientID, payload.SenderID)
	assert.Equal(t, "Hello", payload.Body)
	assert.Equal(t, auth.RolePatient, payload.SenderType)
}

func TestSendPublishesMessageSentEvent(t *testing.T) {
	f := newFixture(t)
	pub := &channelPublisher{ch: make(chan events.MessageSent, 1)}
	f.svc = NewService(f.store, nil, nil, pub, f.broadcaster, zap.NewNop().Sugar())
	f.create(t)

	_, _, err := f.svc.Send(context.Background(), f.doctor, f.appointmentID, "ping")
	require.NoError(t, err)

	select {
	case ev := <-pub.ch:
		assert.Equal(t, f.appointmentID, ev.AppointmentID)
		assert.Equal(t, f.doctorID, ev.SenderID)
		assert.Equal(t, string(auth.RoleDoctor), ev.SenderRole)
		assert.Equal(t, "ping", ev.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("message-sent event was never published")
	}
}

func TestConcurrentSendsLoseNothing(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	const perSender = 25
	var wg sync.WaitGroup
	for _, sender := range []auth.Identity{f.doctor, f.patient} {
		wg.Add(1)
		go func(ident auth.Identity) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				_, _, err := f.svc.Send(context.Background(), ident, f.appointmentID, fmt.Sprintf("%s-%d", ident.Role, i))
				assert.NoError(t, err)
			}
		}(sender)
	}
	wg.Wait()

	page, err := f.svc.History(context.Background(), f.doctor, f.appointmentID, 1, 200)
	require.NoError(t, err)
	assert.Equal(t, 2*perSender, page.TotalMessages)
}

func TestSearchReturnsNewestMatchesFirst(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	for i := 0; i < 200; i++ {
		body := fmt.Sprintf("filler %d", i)
		if i == 10 || i == 90 || i == 150 {
			body = fmt.Sprintf("Hello there %d", i)
		}
		_, _, err := f.svc.Send(context.Background(), f.patient, f.appointmentID, body)
		require.NoError(t, err)
	}

	res, err := f.svc.Search(context.Background(), f.doctor, f.appointmentID, "hello", 20)
	require.NoError(t, err)
	require.Len(t, res.Messages, 3)
	assert.Equal(t, 3, res.TotalMatches)
	assert.Equal(t, "Hello there 150", res.Messages[0].Body)
	assert.Equal(t, "Hello there 90", res.Messages[1].Body)
	assert.Equal(t, "Hello there 10", res.Messages[2].Body)
}

func TestSearchRejectsBlankTerm(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.svc.Search(context.Background(), f.doctor, f.appointmentID, "   ", 20)
	assert.ErrorIs(t, err, ErrEmptySearchTerm)
}

func TestListForUserOrdersByRecency(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	otherAppt := primitive.NewObjectID().Hex()
	otherPatient := primitive.NewObjectID().Hex()
	_, _, err := f.svc.Create(context.Background(), f.doctor, otherAppt, f.doctorID, otherPatient)
	require.NoError(t, err)

	// activity in the second chat makes it the most recent
	time.Sleep(5 * time.Millisecond)
	_, _, err = f.svc.Send(context.Background(), f.doctor, otherAppt, "newest activity")
	require.NoError(t, err)

	summaries, err := f.svc.ListForUser(context.Background(), f.doctor)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, otherAppt, summaries[0].AppointmentID)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "newest activity", summaries[0].LastMessage.Body)
	assert.Equal(t, 1, summaries[0].MessageCount)
	assert.Nil(t, summaries[1].LastMessage)
}

func TestParticipantEnrichmentFallsBack(t *testing.T) {
	f := newFixture(t)
	dir := &stubDirectory{profiles: map[string]directory.Profile{
		f.doctorID: {Name: "Dr. Mehta", Email: "mehta@example.com"},
	}}
	presence := &stubPresence{online: map[string]bool{f.doctorID: true}}
	f.svc = NewService(f.store, dir, presence, nil, f.broadcaster, zap.NewNop().Sugar())
	f.create(t)

	join, err := f.svc.Join(context.Background(), f.patient, f.appointmentID)
	require.NoError(t, err)

	assert.Equal(t, "Dr. Mehta", join.Info.Doctor.Name)
	assert.True(t, join.Info.Doctor.Online)
	// no profile for the patient: generic label, offline
	assert.Equal(t, "Patient", join.Info.Patient.Name)
	assert.False(t, join.Info.Patient.Online)
}

func TestMarkReadRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	chatDoc, _, err := f.svc.Create(context.Background(), f.doctor, f.appointmentID, f.doctorID, f.patientID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.MarkRead(context.Background(), f.outsider, chatDoc.ID.Hex()), ErrNotFound)
	assert.NoError(t, f.svc.MarkRead(context.Background(), f.patient, chatDoc.ID.Hex()))
}
