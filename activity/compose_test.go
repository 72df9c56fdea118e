package activity

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{Domain: "alice.example", Username: "alice", Slug: "hello-world"}

func testReply() Reply {
	return Reply{
		InReplyTo: "https://mastodon.example/@bob/100254678717223630",
		Content:   "<p>Hello world</p>",
		Published: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCompose_ExactBytes(t *testing.T) {
	doc, err := NewComposer(testIdentity).Compose(testReply())
	require.NoError(t, err)

	want := `{"@context":"https://www.w3.org/ns/activitystreams",` +
		`"id":"https://alice.example/create-hello-world",` +
		`"type":"Create",` +
		`"actor":"https://alice.example/actor",` +
		`"object":{"id":"https://alice.example/hello-world",` +
		`"type":"Note",` +
		`"published":"2030-01-01T00:00:00Z",` +
		`"attributedTo":"https://alice.example/actor",` +
		`"inReplyTo":"https://mastodon.example/@bob/100254678717223630",` +
		`"content":"<p>Hello world</p>",` +
		`"to":["https://www.w3.org/ns/activitystreams#Public"]}}`
	assert.Equal(t, want, doc.String())
}

func TestCompose_Deterministic(t *testing.T) {
	c := NewComposer(testIdentity)
	first, err := c.Compose(testReply())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := c.Compose(testReply())
		require.NoError(t, err)
		assert.Equal(t, first.Bytes(), again.Bytes())
	}
}

func TestCompose_PublishedNormalisedToUTC(t *testing.T) {
	r := testReply()
	r.Published = time.Date(2030, 1, 1, 2, 0, 0, 0, time.FixedZone("CEST", 2*60*60))

	doc, err := NewComposer(testIdentity).Compose(r)
	require.NoError(t, err)

	var out struct {
		Object struct {
			Published string `json:"published"`
		} `json:"object"`
	}
	require.NoError(t, json.Unmarshal(doc.Bytes(), &out))
	assert.Equal(t, "2030-01-01T00:00:00Z", out.Object.Published)
}

func TestCompose_CustomAudience(t *testing.T) {
	r := testReply()
	r.To = "https://mastodon.example/users/bob"

	doc, err := NewComposer(testIdentity).Compose(r)
	require.NoError(t, err)
	assert.Contains(t, doc.String(), `"to":["https://mastodon.example/users/bob"]`)
}

func TestDocument_BytesIsACopy(t *testing.T) {
	doc, err := NewComposer(testIdentity).Compose(testReply())
	require.NoError(t, err)

	b := doc.Bytes()
	b[0] = 'X'
	assert.Equal(t, byte('{'), doc.Bytes()[0])
}

func TestCompose_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Reply)
		field string
	}{
		{"non utf8 content", func(r *Reply) { r.Content = "bad \xff\xfe" }, "content"},
		{"empty content", func(r *Reply) { r.Content = "" }, "content"},
		{"relative reply target", func(r *Reply) { r.InReplyTo = "/@bob/1" }, "inReplyTo"},
		{"non http reply target", func(r *Reply) { r.InReplyTo = "acct:bob@example" }, "inReplyTo"},
		{"bad audience", func(r *Reply) { r.To = "nobody" }, "to"},
		{"zero timestamp", func(r *Reply) { r.Published = time.Time{} }, "published"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testReply()
			tt.edit(&r)

			_, err := NewComposer(testIdentity).Compose(r)
			var cerr *CompositionError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestIdentity_DerivedURIs(t *testing.T) {
	assert.Equal(t, "https://alice.example/actor", testIdentity.ActorID())
	assert.Equal(t, "https://alice.example/actor#main-key", testIdentity.KeyID())
	assert.Equal(t, "https://alice.example/inbox", testIdentity.InboxURL())
	assert.Equal(t, "https://alice.example/create-hello-world", testIdentity.ActivityID())
	assert.Equal(t, "https://alice.example/hello-world", testIdentity.NoteID())
}
