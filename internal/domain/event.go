package domain

// EventKind discriminates inbound transport events.
type EventKind int

const (
	EventText EventKind = iota
	EventLocation
	EventPhoto
	EventButton
	EventCommand
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventLocation:
		return "location"
	case EventPhoto:
		return "photo"
	case EventButton:
		return "button"
	case EventCommand:
		return "command"
	}
	return "unknown"
}

// Location is an inbound location payload. Address is set when the
// transport already carries a venue address alongside the coordinates.
type Location struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// PhotoVariant is one resolution of an inbound photo.
type PhotoVariant struct {
	FileID string
	Width  int
	Height int
}

// Event is one typed inbound transport event for a user+chat. Exactly
// the field matching Kind is populated.
type Event struct {
	UserID int64
	ChatID int64
	Kind   EventKind

	Text     string
	Location *Location
	Photo    []PhotoVariant
	Button   string // opaque callback token
	Command  string // command name without the leading slash
}

// Button is one inline keyboard button.
type Button struct {
	Label string
	Token string
}

// Reply is one outbound message. Buttons and RequestLocation are
// mutually exclusive; the transport renders whichever is set.
type Reply struct {
	Text            string
	Buttons         [][]Button
	RequestLocation bool
}

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Text: text}
}
