package question

import "strings"

// Kind is the question type code used on the wire and in source rows.
type Kind string

const (
	KindMultipleChoice Kind = "mc"
	KindShortAnswer    Kind = "sa"
	KindBuzzer         Kind = "bz"
	KindReadyCheck     Kind = "md"
	KindSpecialPrompt  Kind = "sp"
)

// ParseKind maps a source type code (MC, SA, BZ, MD, SP) to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMultipleChoice:
		return KindMultipleChoice, true
	case KindShortAnswer:
		return KindShortAnswer, true
	case KindBuzzer:
		return KindBuzzer, true
	case KindReadyCheck:
		return KindReadyCheck, true
	case KindSpecialPrompt:
		return KindSpecialPrompt, true
	}
	return "", false
}

// Header carries the fields every question kind shares.
type Header struct {
	Round           int    `json:"round"`
	Number          int    `json:"num"`
	Category        string `json:"category,omitempty"`
	Subcategory     string `json:"subcategory,omitempty"`
	Prompt          string `json:"question,omitempty"`
	Image           string `json:"image,omitempty"`
	Media           string `json:"media,omitempty"`
	InstantFeedback bool   `json:"instant,omitempty"`
}

// Info returns the shared header.
func (h Header) Info() Header { return h }

// Definition is one of MultipleChoice, ShortAnswer, Buzzer, ReadyCheck or SpecialPrompt.
type Definition interface {
	Kind() Kind
	Info() Header
}

// MultipleChoice offers up to five options a-e. Answer may hold several letters.
type MultipleChoice struct {
	Header
	Options []string
	Answer  string
	Timed   bool
}

// ShortAnswer is a free-text or numeric answer.
type ShortAnswer struct {
	Header
	Answer string
	Timed  bool
}

// Buzzer is a speed-ranked free-text question. It is always timed.
type Buzzer struct {
	Header
	Answer string
}

// ReadyCheck asks every team to confirm readiness with "r".
type ReadyCheck struct {
	Header
}

// SpecialPrompt shows external content and takes no answers.
type SpecialPrompt struct {
	Header
	URL string
}

func (MultipleChoice) Kind() Kind { return KindMultipleChoice }
func (ShortAnswer) Kind() Kind    { return KindShortAnswer }
func (Buzzer) Kind() Kind         { return KindBuzzer }
func (ReadyCheck) Kind() Kind     { return KindReadyCheck }
func (SpecialPrompt) Kind() Kind  { return KindSpecialPrompt }

// ReadyToken is the only accepted ReadyCheck submission.
const ReadyToken = "r"

// AnswerOf returns the canonical answer, or "" for kinds without one.
func AnswerOf(d Definition) string {
	switch q := d.(type) {
	case MultipleChoice:
		return q.Answer
	case ShortAnswer:
		return q.Answer
	case Buzzer:
		return q.Answer
	case ReadyCheck:
		return ReadyToken
	}
	return ""
}

// IsTimed reports whether correct answers earn a tiebreak.
func IsTimed(d Definition) bool {
	switch q := d.(type) {
	case MultipleChoice:
		return q.Timed
	case ShortAnswer:
		return q.Timed
	case Buzzer:
		return true
	}
	return false
}

// Ref identifies a question in the deck for host pickers.
type Ref struct {
	Index  int `json:"index"`
	Round  int `json:"r"`
	Number int `json:"q"`
}
