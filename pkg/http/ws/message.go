package ws

import "encoding/json"

// MessageType constants for WebSocket protocol.
const (
	// Client -> Server (host)
	TypeLoadQuestion      = "load-question"
	TypeNextQuestion      = "next-question"
	TypeQuestionList      = "question-list"
	TypeStartTimer        = "start-timer"
	TypeStopTimer         = "stop-timer"
	TypeShowAnswer        = "show-answer"
	TypeScoresSave        = "scores-save"
	TypeScoresCompute     = "scores-compute"
	TypeScoresPublish     = "scores-publish"
	TypeInitBrackets      = "adm-initBrackets"
	TypeStartBracketRound = "adm-startBracketRound"
	TypeEndBracketRound   = "adm-endBracketRound"

	// Client -> Server (team)
	TypeAnswer      = "answer"
	TypeBracketsMsg = "brackets-msg"
	TypeStatus      = "status"
	TypePing        = "ping"
	TypeSetName     = "set-name"

	// Server -> Client
	TypeQuestion           = "question"
	TypeQuestionFull       = "question-full"
	TypeQuestionError      = "question-error"
	TypeTimer              = "timer"
	TypeStop               = "stop"
	TypeAnswerReveal       = "answer"
	TypeAnswerAck          = "answer-ack"
	TypeAnswerTime         = "answer-time"
	TypeAnswerBuzzer       = "answer-buzzer"
	TypeAnswerStats        = "answer-stats"
	TypeAnswerUpdate       = "answer-update"
	TypeUpdate             = "update"
	TypeScoresHost         = "scores-host"
	TypeScoresRelease      = "scores-release"
	TypeConfig             = "config"
	TypeBracketsNewMatch   = "brackets-newMatch"
	TypeBracketsEndMatch   = "brackets-endMatch"
	TypeBracketsScore      = "brackets-scoreUpdate"
	TypeError              = "error"
	TypePong               = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage encodes payload into a typed message.
func NewMessage(msgType string, payload any) (Message, error) {
	msg := Message{Type: msgType}
	if payload == nil {
		return msg, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = raw
	return msg, nil
}

// Client Messages (incoming)

type LoadQuestionPayload struct {
	Index int `json:"index"`
}

type StartTimerPayload struct {
	Seconds int `json:"seconds,omitempty"` // 0 picks the default for the question kind
}

type ShowAnswerPayload struct {
	Save bool `json:"save"`
}

type ScoresComputePayload struct {
	Rounds []int `json:"rounds,omitempty"` // empty means every counted round
}

type InitBracketsPayload struct {
	NumBrackets int `json:"numBrackets"`
}

type BracketRoundPayload struct {
	Round int `json:"round"`
}

type AnswerPayload struct {
	Answer string `json:"answer"`
}

// BracketsMsgPayload is relayed verbatim between the two teams of a match.
type BracketsMsgPayload map[string]any

type SetNamePayload struct {
	Name string `json:"name"`
}

// Server Messages (outgoing)

type TimerPayload struct {
	Seconds int `json:"seconds"`
}

type UpdatePayload struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Message string `json:"msg"`
}

type ConfigPayload struct {
	Brackets BracketConfig `json:"brackets"`
}

type BracketConfig struct {
	Active bool `json:"active"`
	Round  int  `json:"round"`
}

type AnnouncementPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
