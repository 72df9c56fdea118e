package models

// Field order of these structs is the serialized order. Digests are computed
// over the encoded bytes, so do not reorder fields.

type Create struct {
	Context string `json:"@context"`
	ID      string `json:"id"`
	Type    string `json:"type"`
	Actor   string `json:"actor"`
	Object  Note   `json:"object"`
}

type Note struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Published    string   `json:"published"`
	AttributedTo string   `json:"attributedTo"`
	InReplyTo    string   `json:"inReplyTo"`
	Content      string   `json:"content"`
	To           []string `json:"to"`
}

// ActivityHeader is the minimal view of an inbound activity used for logging.
type ActivityHeader struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor string `json:"actor"`
}
