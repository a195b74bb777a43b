package domain

// Option is a selectable action attached to a message (a button).
type Option struct {
	Label string `json:"label"`
	Event Event  `json:"event"`
}

type Message struct {
	Text           string   `json:"text"`
	Options        []Option `json:"options,omitempty"`
	RequestContact bool     `json:"request_contact,omitempty"`
}

// Reply is what the user sees in response to one event.
type Reply struct {
	Messages []Message `json:"messages"`
	Step     Step      `json:"step,omitempty"`
}

func NewReply(msgs ...Message) *Reply {
	return &Reply{Messages: msgs}
}

func (r *Reply) Add(msgs ...Message) *Reply {
	r.Messages = append(r.Messages, msgs...)
	return r
}
