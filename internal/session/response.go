package session

import "github.com/adotb/adotb-go/internal/rag"

// Sender identifies which side of the conversation a BotResponse speaks for.
type Sender string

// ResponseType classifies a BotResponse frame.
type ResponseType string

const (
	// SenderUser marks frames echoing the user's own input, such as a
	// transcribed audio question.
	SenderUser Sender = "You"
	// SenderBot marks frames generated by the assistant.
	SenderBot Sender = "Bot"

	// TypeQuestion tags an echo of the user's question.
	TypeQuestion ResponseType = "question"
	// TypeAnswer tags a generated answer.
	TypeAnswer ResponseType = "answer"
	// TypeError tags a user-facing failure notice.
	TypeError ResponseType = "error"
)

// ResetNotice is the canned reply sent after a reset message clears the
// chat history.
const ResetNotice = "Okay, let's start a new conversation. What would you like to know?"

// BotResponse is the server-to-client frame. Sources and Media are always
// present in the encoded JSON, empty rather than null, since clients index
// into them unconditionally.
type BotResponse struct {
	Message string       `json:"message"`
	Sender  Sender       `json:"sender"`
	Sources []string     `json:"sources"`
	Media   []string     `json:"media"`
	Type    ResponseType `json:"type"`
}

// AnswerResponse builds the Bot frame for a completed turn. Sources cite
// each context document by its links, falling back to the document ID when
// a document carries no link. Media aggregates across the cited documents
// in ranked order.
func AnswerResponse(ans *rag.Answer) BotResponse {
	sources := []string{}
	media := []string{}
	for _, doc := range ans.Sources {
		if len(doc.Links) > 0 {
			sources = append(sources, doc.Links...)
		} else {
			sources = append(sources, doc.ID)
		}
		media = append(media, doc.Media...)
	}
	return BotResponse{
		Message: ans.Text,
		Sender:  SenderBot,
		Sources: sources,
		Media:   media,
		Type:    TypeAnswer,
	}
}

// QuestionEcho builds the You frame echoing a transcribed audio question
// back to the client before the turn runs.
func QuestionEcho(text string) BotResponse {
	return BotResponse{
		Message: text,
		Sender:  SenderUser,
		Sources: []string{},
		Media:   []string{},
		Type:    TypeQuestion,
	}
}

// ErrorResponse builds the Bot frame for a user-facing failure notice.
func ErrorResponse(message string) BotResponse {
	return BotResponse{
		Message: message,
		Sender:  SenderBot,
		Sources: []string{},
		Media:   []string{},
		Type:    TypeError,
	}
}
