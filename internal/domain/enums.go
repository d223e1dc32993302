package domain

import (
	"fmt"
	"strings"
)

// Participant identifies one of the two people splitting an invoice.
type Participant string

const (
	ParticipantA Participant = "a"
	ParticipantB Participant = "b"
)

// Participants lists both sides in display order.
var Participants = []Participant{ParticipantA, ParticipantB}

// Other returns the opposite participant.
func (p Participant) Other() Participant {
	if p == ParticipantA {
		return ParticipantB
	}
	return ParticipantA
}

// Valid reports whether p is one of the two known participants.
func (p Participant) Valid() bool {
	return p == ParticipantA || p == ParticipantB
}

// ParseParticipant accepts "a"/"b" in any case, plus "1"/"2".
func ParseParticipant(s string) (Participant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "1":
		return ParticipantA, nil
	case "b", "2":
		return ParticipantB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownParticipant, s)
	}
}

// SessionState tracks where a session is in the document lifecycle.
type SessionState string

const (
	SessionStateEmpty      SessionState = "empty"
	SessionStateProcessing SessionState = "processing"
	SessionStateReady      SessionState = "ready"
	SessionStateFailed     SessionState = "failed"
)

// ReaderKind selects the page text reader.
type ReaderKind string

const (
	ReaderNative    ReaderKind = "native"
	ReaderPdftotext ReaderKind = "pdftotext"
)

// AllowedContentTypes maps accepted MIME types to a file extension.
var AllowedContentTypes = map[string]string{
	"application/pdf": "pdf",
}

// AllowedExtensions maps file extensions (without dot) to their MIME type.
var AllowedExtensions = map[string]string{
	"pdf": "application/pdf",
}
