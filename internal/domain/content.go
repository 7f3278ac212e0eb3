package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Kind labels what a content unit holds.
type Kind string

const (
	KindText  Kind = "text"
	KindTable Kind = "table"
	KindImage Kind = "image"
)

// AllKinds lists every kind in indexing order.
var AllKinds = []Kind{KindText, KindTable, KindImage}

// TextualKinds are the kinds whose payload is rendered into the prompt as text.
var TextualKinds = []Kind{KindText, KindTable}

// ParseKind returns the Kind for s, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

func (k Kind) Valid() bool {
	switch k {
	case KindText, KindTable, KindImage:
		return true
	}
	return false
}

// ContentUnit is one retrievable artifact extracted from a source document.
// Image payloads are base64 encoded.
type ContentUnit struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Payload     string `json:"payload"`
	OwnerUserID string `json:"owner_user_id"`
	SessionID   string `json:"session_id,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
}

// Scope returns the (owner, session) pair the unit was indexed under.
func (u *ContentUnit) Scope() Scope {
	return Scope{OwnerUserID: u.OwnerUserID, SessionID: u.SessionID}
}

// DeclaredKind returns the unit's kind, falling back to sniffing the payload
// when the stored kind is missing or unknown.
func (u *ContentUnit) DeclaredKind() Kind {
	if u.Kind.Valid() {
		return u.Kind
	}
	if LooksLikeBase64Image(u.Payload) {
		return KindImage
	}
	return KindText
}

// ResolvedKind is DeclaredKind, except that an image whose payload does not
// decode as base64 is treated as text.
func (u *ContentUnit) ResolvedKind() Kind {
	k := u.DeclaredKind()
	if k == KindImage && !decodesAsBase64(u.Payload) {
		return KindText
	}
	return k
}

// ValidateContentUnit checks the fields every stored unit must carry.
func ValidateContentUnit(u *ContentUnit) error {
	if u == nil {
		return fmt.Errorf("content unit cannot be nil")
	}
	if u.ID == "" {
		return fmt.Errorf("content unit ID is required")
	}
	if !u.Kind.Valid() {
		return fmt.Errorf("content unit Kind is invalid: %s", u.Kind)
	}
	if u.OwnerUserID == "" {
		return fmt.Errorf("content unit OwnerUserID is required")
	}
	if strings.TrimSpace(u.Payload) == "" {
		return fmt.Errorf("content unit Payload is required")
	}
	return nil
}

// LooksLikeBase64Image reports whether s decodes as strict base64 and does not
// read as ordinary prose.
func LooksLikeBase64Image(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 16 || strings.ContainsAny(s, " \n\t") {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return false
	}
	return !utf8.Valid(raw)
}

func decodesAsBase64(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \n\t") {
		return false
	}
	if _, err := base64.StdEncoding.DecodeString(s); err == nil {
		return true
	}
	_, err := base64.RawStdEncoding.DecodeString(s)
	return err == nil
}

// SummaryRecord is the embedded, searchable surrogate of a content unit.
type SummaryRecord struct {
	ID          string
	Embedding   []float32
	SummaryText string
	Kind        Kind
	OwnerUserID string
	SessionID   string
}

// Scope bounds which content a query may retrieve. An empty SessionID spans
// all of the owner's content.
type Scope struct {
	OwnerUserID string
	SessionID   string
}

// Allows reports whether content indexed under other is
// visible from this scope.
func (s Scope) Allows(other Scope) bool {
	if s.OwnerUserID == "" || s.OwnerUserID != other.OwnerUserID {
		return false
	}
	return s.SessionID == "" || s.SessionID == other.SessionID
}

// UnitFailure records why a single unit was not indexed.
type UnitFailure struct {
	Index  int    `json:"index"`
	Kind   Kind   `json:"kind"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// Failure stages.
const (
	StageValidate  = "validate"
	StageSummarize = "summarize"
	StageEmbed     = "embed"
	StageDocument  = "document_store"
	StageVector    = "vector_index"
)

// IndexCounts holds successfully indexed units per kind.
type IndexCounts struct {
	Texts  int `json:"texts"`
	Tables int `json:"tables"`
	Images int `json:"images"`
}

func (c *IndexCounts) Add(k Kind) {
	switch k {
	case KindText:
		c.Texts++
	case KindTable:
		c.Tables++
	case KindImage:
		c.Images++
	}
}

func (c IndexCounts) Total() int {
	return c.Texts + c.Tables + c.Images
}

// IndexReport is the outcome of one index call.
type IndexReport struct {
	Counts   IndexCounts   `json:"counts"`
	UnitIDs  []string      `json:"unit_ids"`
	Failures []UnitFailure `json:"failures,omitempty"`
}

// SummaryFilter is the conjunctive metadata filter applied to similarity
// search: kind AND owner, plus session when the scope names one.
type SummaryFilter struct {
	Kind  Kind
	Scope Scope
}

// SummaryHit is one similarity search result.
type SummaryHit struct {
	ID          string
	Kind        Kind
	SummaryText string
	Score       float32
}
