package delivery

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cvhariharan/alice/activity"
	"github.com/cvhariharan/alice/keys"
	"github.com/cvhariharan/alice/models"
)

// SignedHeaders is the fixed header list covered by the signature. Mastodon
// accepts this set; do not widen it.
const SignedHeaders = "(request-target) host date digest"

// Algorithm is the value of the algorithm signature parameter.
const Algorithm = "rsa-sha256"

// Target is the remote inbox a document is delivered to.
type Target struct {
	Host      string
	InboxPath string
}

// URL returns the https URL of the inbox.
func (t Target) URL() string {
	return "https://" + t.Host + t.InboxPath
}

func (t Target) String() string { return t.URL() }

// ParseInboxURL splits an absolute https inbox URL into a Target.
func ParseInboxURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("parse inbox url: %w", err)
	}
	if u.Scheme != "https" {
		return Target{}, fmt.Errorf("inbox url %q must use https", raw)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("inbox url %q has no host", raw)
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return Target{Host: u.Host, InboxPath: path}, nil
}

// DigestHeader returns the Digest header value for body.
func DigestHeader(body []byte) string {
	sum := sha256.Sum256(body)
	return "SHA-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

// HTTPDate formats t as an RFC 7231 HTTP-date.
func HTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// SigningString builds the string covered by the signature. Fields are in
// SignedHeaders order, newline separated, without a trailing newline.
func SigningString(inboxPath, host, date, digest string) string {
	var b strings.Builder
	b.WriteString("(request-target): post ")
	b.WriteString(inboxPath)
	b.WriteString("\nhost: ")
	b.WriteString(host)
	b.WriteString("\ndate: ")
	b.WriteString(date)
	b.WriteString("\ndigest: ")
	b.WriteString(digest)
	return b.String()
}

// SignatureHeader formats the Signature header value.
func SignatureHeader(keyID string, signature []byte) string {
	return fmt.Sprintf(`keyId="%s",algorithm="%s",headers="%s",signature="%s"`,
		keyID, Algorithm, SignedHeaders, base64.StdEncoding.EncodeToString(signature))
}

// Request is a fully signed delivery request ready to be sent.
type Request struct {
	Method        string
	URL           string
	Header        http.Header
	Body          []byte
	SigningString string
}

// NewRequest digests doc, signs it for target with the PEM encoded private
// key and assembles the request. The same body slice is digested and sent.
func NewRequest(doc activity.Document, target Target, keyID string, privateKeyPEM []byte, now time.Time) (*Request, error) {
	body := doc.Bytes()
	digest := DigestHeader(body)
	date := HTTPDate(now)
	signingString := SigningString(target.InboxPath, target.Host, date, digest)

	signature, err := sign(privateKeyPEM, signingString)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", models.ActivityJSONType)
	header.Set("Accept", models.ActivityJSONType)
	header.Set("Host", target.Host)
	header.Set("Date", date)
	header.Set("Digest", digest)
	header.Set("Signature", SignatureHeader(keyID, signature))

	return &Request{
		Method:        http.MethodPost,
		URL:           target.URL(),
		Header:        header,
		Body:          body,
		SigningString: signingString,
	}, nil
}

// sign parses the key, signs and lets the key go out of scope.
func sign(privateKeyPEM []byte, signingString string) ([]byte, error) {
	key, err := keys.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, &KeyError{Err: err}
	}

	hashed := sha256.Sum256([]byte(signingString))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hashed[:])
	if err != nil {
		return nil, &SigningError{Err: err}
	}
	return signature, nil
}

// Verify checks signature over signingString with pub. It mirrors what the
// receiving server does and is used to self-check outgoing requests.
func Verify(pub *rsa.PublicKey, signingString string, signature []byte) error {
	hashed := sha256.Sum256([]byte(signingString))
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], signature)
}
