package messenger

// Postback payloads the bot understands.
const (
	PayloadGetStarted       = "GET_STARTED"
	PayloadSetDailyReminder = "SET_DAILY_REMINDER"
)

// Quick reply payloads the bot understands.
const (
	PayloadQuizMe       = "QUIZ_ME"
	PayloadYes          = "YES"
	PayloadContinueSong = "CONTINUE_SONG"
)

// WebhookPayload is the body of a webhook POST.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one page entry in a webhook payload.
type Entry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []MessagingEvent `json:"messaging"`
}

// MessagingEvent is one event of an entry. Exactly one of the pointer
// fields is set.
type MessagingEvent struct {
	Sender    Party          `json:"sender"`
	Recipient Party          `json:"recipient"`
	Timestamp int64          `json:"timestamp"`
	Message   *MessageEvent  `json:"message,omitempty"`
	Postback  *PostbackEvent `json:"postback,omitempty"`
	Read      *ReadEvent     `json:"read,omitempty"`
	Delivery  *DeliveryEvent `json:"delivery,omitempty"`
	Reaction  *ReactionEvent `json:"reaction,omitempty"`
}

// Party identifies a sender or recipient by page-scoped id.
type Party struct {
	ID string `json:"id"`
}

// MessageEvent is an inbound message.
type MessageEvent struct {
	MID        string             `json:"mid"`
	Text       string             `json:"text"`
	IsEcho     bool               `json:"is_echo,omitempty"`
	QuickReply *QuickReplyPayload `json:"quick_reply,omitempty"`
}

// QuickReplyPayload carries the payload of a tapped quick reply.
type QuickReplyPayload struct {
	Payload string `json:"payload"`
}

// PostbackEvent is a tapped button.
type PostbackEvent struct {
	Title   string `json:"title"`
	Payload string `json:"payload"`
}

// ReadEvent is a read receipt.
type ReadEvent struct {
	Watermark int64 `json:"watermark"`
}

// DeliveryEvent is a delivery receipt.
type DeliveryEvent struct {
	Watermark int64 `json:"watermark"`
}

// ReactionEvent is an emoji reaction.
type ReactionEvent struct {
	Action string `json:"action"`
	Emoji  string `json:"emoji"`
}

// EventKind tags the classified event.
type EventKind int

const (
	KindUnhandled EventKind = iota
	KindTextMessage
	KindQuickReply
	KindPostback
	KindRead
	KindDelivery
	KindReaction
	KindEcho
)

// Kind classifies a messaging event. Receipts, reactions and echoes get
// their own kinds so the dispatcher can drop them explicitly.
func (e *MessagingEvent) Kind() EventKind {
	switch {
	case e.Message != nil && e.Message.IsEcho:
		return KindEcho
	case e.Message != nil && e.Message.QuickReply != nil:
		return KindQuickReply
	case e.Message != nil && e.Message.Text != "":
		return KindTextMessage
	case e.Postback != nil:
		return KindPostback
	case e.Read != nil:
		return KindRead
	case e.Delivery != nil:
		return KindDelivery
	case e.Reaction != nil:
		return KindReaction
	default:
		return KindUnhandled
	}
}
