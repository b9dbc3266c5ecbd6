package identity

import (
	"testing"
	"time"

	"talimchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var currentUser = models.User{
	ID:        "u2",
	UserID:    "legacy-u2",
	FirstName: "Grace",
	LastName:  "Hopper",
	Email:     "grace@school.test",
}

func msgFrom(id, name string) models.Message {
	return models.Message{
		ID:         "m1",
		RoomID:     "r1",
		Sender:     models.RawSender{ID: id},
		SenderName: name,
		Content:    "hi",
		Timestamp:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestResolve_ExplicitSenderName(t *testing.T) {
	got := Resolve(msgFrom("u1", "Ada Lovelace"), nil, currentUser)
	assert.Equal(t, Resolved{SenderID: "u1", SenderName: "Ada Lovelace"}, got)
}

func TestResolve_PopulatedSenderObject(t *testing.T) {
	msg := msgFrom("", "")
	msg.Sender = models.RawSender{ID: "u1", FirstName: "Ada", LastName: "Lovelace"}

	got := Resolve(msg, nil, currentUser)
	assert.Equal(t, "u1", got.SenderID)
	assert.Equal(t, "Ada Lovelace", got.SenderName)
	assert.False(t, got.IsCurrentUser)
}

func TestResolve_MessageNameWinsOverObjectName(t *testing.T) {
	msg := msgFrom("u1", "Preferred Name")
	msg.Sender.FirstName = "Ada"

	got := Resolve(msg, nil, currentUser)
	assert.Equal(t, "Preferred Name", got.SenderName)
}

func TestResolve_SelfMessageWithoutName(t *testing.T) {
	// The server omits redundant name data on self-messages; they must
	// never render as "Unknown".
	got := Resolve(msgFrom("u2", ""), nil, currentUser)
	require.True(t, got.IsCurrentUser)
	assert.Equal(t, "Grace Hopper", got.SenderName)
}

func TestResolve_SelfMessageFallbackChain(t *testing.T) {
	nameless := models.User{ID: "u2", Email: "grace@school.test"}
	got := Resolve(msgFrom("u2", ""), nil, nameless)
	assert.Equal(t, "grace@school.test", got.SenderName)

	bare := models.User{ID: "u2"}
	got = Resolve(msgFrom("u2", ""), nil, bare)
	assert.Equal(t, "You", got.SenderName)
	assert.True(t, got.IsCurrentUser)
}

func TestResolve_SelfMatchesAnyAlias(t *testing.T) {
	for _, alias := range []string{"u2", "legacy-u2"} {
		got := Resolve(msgFrom(alias, ""), nil, currentUser)
		assert.True(t, got.IsCurrentUser, "alias %q should match", alias)
	}
}

func TestResolve_ParticipantFallback(t *testing.T) {
	room := &models.Room{
		RoomID: "r1",
		Type:   models.RoomTypeGroup,
		Participants: []models.Participant{
			{UserID: "u1", FirstName: "Ada", LastName: "Lovelace"},
			{MongoID: "u3", Name: "Mr. Turing"},
			{AltID: "u4", Email: "anon@school.test"},
		},
	}

	got := Resolve(msgFrom("u1", ""), room, currentUser)
	assert.Equal(t, "Ada Lovelace", got.SenderName)

	got = Resolve(msgFrom("u3", ""), room, currentUser)
	assert.Equal(t, "Mr. Turing", got.SenderName, "generic name field used when name parts are empty")

	got = Resolve(msgFrom("u4", ""), room, currentUser)
	assert.Equal(t, "anon@school.test", got.SenderName, "email is the last participant fallback")
}

func TestResolve_UnknownPlaceholder(t *testing.T) {
	room := &models.Room{Participants: []models.Participant{{UserID: "someone-else"}}}

	got := Resolve(msgFrom("u9", ""), room, currentUser)
	assert.Equal(t, "Unknown", got.SenderName)
	assert.False(t, got.IsCurrentUser)

	got = Resolve(msgFrom("u9", ""), nil, currentUser)
	assert.Equal(t, "Unknown", got.SenderName)
}

func TestResolve_NameMatchOnlyWithoutID(t *testing.T) {
	// With an id present, a name collision must not claim the message.
	got := Resolve(msgFrom("u1", "Grace Hopper"), nil, currentUser)
	assert.False(t, got.IsCurrentUser)

	// Without any id, the name is the only signal left.
	got = Resolve(msgFrom("", "grace hopper"), nil, currentUser)
	assert.True(t, got.IsCurrentUser)

	got = Resolve(msgFrom("", "Someone Else"), nil, currentUser)
	assert.False(t, got.IsCurrentUser)
}

func TestResolve_Deterministic(t *testing.T) {
	room := &models.Room{
		Participants: []models.Participant{{UserID: "u1", FirstName: "Ada"}},
	}
	msg := msgFrom("u1", "")

	first := Resolve(msg, room, currentUser)
	second := Resolve(msg, room, currentUser)
	require.Equal(t, first, second)
}

func TestResolve_DoesNotMutateInputs(t *testing.T) {
	room := &models.Room{
		Participants: []models.Participant{{UserID: "u1", FirstName: "Ada"}},
	}
	msg := msgFrom("u1", "")
	before := *room

	Resolve(msg, room, currentUser)
	assert.Equal(t, before.Participants, room.Participants)
	assert.Equal(t, "", msg.SenderName)
}
