// Package identifier models the Peppol participant, document type and process
// identifiers used for directory lookups and report transmission.
//
// Identifiers are a (scheme, value) pair. The URI-encoded form joins both with
// a double colon, e.g. "iso6523-actorid-upis::0088:5798000000001".
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Identifier schemes defined by the Peppol policy for use of identifiers
const (
	// SchemeParticipant is the only participant identifier scheme in use
	SchemeParticipant = "iso6523-actorid-upis"
	// SchemeDocumentTypeBusdox is the classic document type identifier scheme
	SchemeDocumentTypeBusdox = "busdox-docid-qns"
	// SchemeDocumentTypeWildcard is the document type scheme for wildcard matching
	SchemeDocumentTypeWildcard = "peppol-doctype-wildcard"
	// SchemeProcess is the process identifier scheme
	SchemeProcess = "cenbii-procid-ubl"

	uriSeparator = "::"
)

var (
	// ErrInvalidIdentifier is returned when an identifier cannot be parsed
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

// ParticipantID identifies a participant in the Peppol network
type ParticipantID struct {
	Scheme string
	Value  string
}

// NewParticipantID creates a participant identifier using the default scheme.
func NewParticipantID(value string) ParticipantID {
	return ParticipantID{Scheme: SchemeParticipant, Value: value}
}

// ParseParticipantID parses the URI-encoded form of a participant identifier.
// A bare value without scheme gets the default participant scheme.
func ParseParticipantID(s string) (ParticipantID, error) {
	scheme, value, err := parse(s, SchemeParticipant)
	if err != nil {
		return ParticipantID{}, err
	}
	return ParticipantID{Scheme: scheme, Value: value}, nil
}

// URIEncoded returns "scheme::value".
func (p ParticipantID) URIEncoded() string {
	return p.Scheme + uriSeparator + p.Value
}

// IsValid reports whether both scheme and value are set.
func (p ParticipantID) IsValid() bool {
	return strings.TrimSpace(p.Scheme) != "" && strings.TrimSpace(p.Value) != ""
}

func (p ParticipantID) String() string {
	return p.URIEncoded()
}

// DocumentTypeID identifies a document type
type DocumentTypeID struct {
	Scheme string
	Value  string
}

// URIEncoded returns "scheme::value".
func (d DocumentTypeID) URIEncoded() string {
	return d.Scheme + uriSeparator + d.Value
}

func (d DocumentTypeID) String() string {
	return d.URIEncoded()
}

// ProcessID identifies a business process
type ProcessID struct {
	Scheme string
	Value  string
}

// URIEncoded returns "scheme::value".
func (p ProcessID) URIEncoded() string {
	return p.Scheme + uriSeparator + p.Value
}

func (p ProcessID) String() string {
	return p.URIEncoded()
}

// ParseDocumentTypeID parses a URI-encoded document type identifier.
func ParseDocumentTypeID(s string) (DocumentTypeID, error) {
	scheme, value, err := parse(s, SchemeDocumentTypeBusdox)
	if err != nil {
		return DocumentTypeID{}, err
	}
	return DocumentTypeID{Scheme: scheme, Value: value}, nil
}

// ParseProcessID parses a URI-encoded process identifier.
func ParseProcessID(s string) (ProcessID, error) {
	scheme, value, err := parse(s, SchemeProcess)
	if err != nil {
		return ProcessID{}, err
	}
	return ProcessID{Scheme: scheme, Value: value}, nil
}

// parse splits at the first "::". Document type values contain "::" themselves,
// so a missing scheme is only assumed when the prefix is not a known scheme.
func parse(s, defaultScheme string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	scheme, value, found := strings.Cut(s, uriSeparator)
	if !found || !isKnownScheme(scheme) {
		return defaultScheme, s, nil
	}
	if value == "" {
		return "", "", fmt.Errorf("%w: empty value in %q", ErrInvalidIdentifier, s)
	}
	return scheme, value, nil
}

func isKnownScheme(s string) bool {
	switch s {
	case SchemeParticipant, SchemeDocumentTypeBusdox, SchemeDocumentTypeWildcard, SchemeProcess:
		return true
	}
	return false
}
