// Package activity builds the outbound Create/Note document.
package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cvhariharan/alice/models"
)

// Identity is the local actor. It is built once at startup and never mutated.
type Identity struct {
	Domain   string
	Username string
	Slug     string
}

func (i Identity) base() string { return "https://" + i.Domain }

// ActorID is the URI of the actor profile document.
func (i Identity) ActorID() string { return i.base() + "/actor" }

// KeyID is the URI fragment the remote server dereferences to find our public key.
func (i Identity) KeyID() string { return i.ActorID() + "#main-key" }

// InboxURL is the local inbox advertised in the actor profile.
func (i Identity) InboxURL() string { return i.base() + "/inbox" }

// ActivityID returns the id of the Create activity.
func (i Identity) ActivityID() string { return i.base() + "/create-" + i.Slug }

// NoteID returns the id of the embedded Note.
func (i Identity) NoteID() string { return i.base() + "/" + i.Slug }

// Reply holds the caller-supplied inputs of one reply.
type Reply struct {
	InReplyTo string
	Content   string
	// To defaults to the public collection when empty.
	To        string
	Published time.Time
}

// Document is a composed activity. Its bytes are what gets digested, signed and sent.
type Document struct {
	raw []byte
}

// Bytes returns a copy of the encoded document.
func (d Document) Bytes() []byte { return bytes.Clone(d.raw) }

// Len returns the size of the encoded document.
func (d Document) Len() int { return len(d.raw) }

func (d Document) String() string { return string(d.raw) }

// CompositionError reports input that cannot be turned into a valid document.
type CompositionError struct {
	Field  string
	Reason string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose activity: %s: %s", e.Field, e.Reason)
}

// Composer turns replies into documents for a single identity.
type Composer struct {
	id Identity
}

// NewComposer returns a Composer for id.
func NewComposer(id Identity) *Composer {
	return &Composer{id: id}
}

// Identity returns the identity the composer writes as.
func (c *Composer) Identity() Identity { return c.id }

// Compose encodes r as a Create activity wrapping a Note. Identical inputs
// always produce identical bytes.
func (c *Composer) Compose(r Reply) (Document, error) {
	if err := validateReply(r); err != nil {
		return Document{}, err
	}

	to := r.To
	if to == "" {
		to = models.PublicCollection
	}

	create := models.Create{
		Context: models.ActivityStreamsContext,
		ID:      c.id.ActivityID(),
		Type:    "Create",
		Actor:   c.id.ActorID(),
		Object: models.Note{
			ID:           c.id.NoteID(),
			Type:         "Note",
			Published:    r.Published.UTC().Format(time.RFC3339),
			AttributedTo: c.id.ActorID(),
			InReplyTo:    r.InReplyTo,
			Content:      r.Content,
			To:           []string{to},
		},
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(create); err != nil {
		return Document{}, &CompositionError{Field: "document", Reason: err.Error()}
	}

	return Document{raw: bytes.TrimSuffix(buf.Bytes(), []byte("\n"))}, nil
}

func validateReply(r Reply) error {
	if r.Content == "" {
		return &CompositionError{Field: "content", Reason: "empty"}
	}
	if !utf8.ValidString(r.Content) {
		return &CompositionError{Field: "content", Reason: "not valid UTF-8"}
	}
	if err := validateURI(r.InReplyTo); err != nil {
		return &CompositionError{Field: "inReplyTo", Reason: err.Error()}
	}
	if r.To != "" {
		if err := validateURI(r.To); err != nil {
			return &CompositionError{Field: "to", Reason: err.Error()}
		}
	}
	if r.Published.IsZero() {
		return &CompositionError{Field: "published", Reason: "missing timestamp"}
	}
	return nil
}

func validateURI(raw string) error {
	if !utf8.ValidString(raw) {
		return fmt.Errorf("not valid UTF-8")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%q is not an absolute http(s) URI", raw)
	}
	if u.Host == "" || strings.ContainsAny(u.Host, " \t") {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}
