package bot

// A Button is one inline menu entry; Data travels back as callback data when
// the button is pressed.
type Button struct {
	Label string
	Data  string
}

// A MessageRef identifies a sent message for later edits or deletion.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// An Event is one incoming update, either a text message or a button press
// (CallbackData non-empty). The chat platform adapter translates its native
// update type into this.
type Event struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Language  string
	Text      string
	// Callback fields, set only for button presses.
	CallbackID   string
	CallbackData string
}

// Transport is the chat platform boundary. Implementations deliver messages
// and files; everything above it is platform-agnostic.
type Transport interface {
	SendText(chatID int64, text string) (MessageRef, error)
	EditText(ref MessageRef, text string) error
	DeleteMessage(ref MessageRef) error
	// SendMenu sends text with an inline keyboard; thumbnailPath, when
	// non-empty, is a local preview image sent with the menu.
	SendMenu(chatID int64, text, thumbnailPath string, buttons [][]Button) (MessageRef, error)
	// SendAudioFile uploads a local audio file and returns the platform's
	// reusable file id.
	SendAudioFile(chatID int64, path, title, performer string) (string, error)
	// SendVideoFile uploads a local video file and returns the platform's
	// reusable file id.
	SendVideoFile(chatID int64, path, caption string) (string, error)
	SendCachedAudio(chatID int64, fileID, caption string) error
	SendCachedVideo(chatID int64, fileID, caption string) error
	// AnswerCallback acknowledges a button press, optionally with a notice.
	AnswerCallback(callbackID, text string) error
}
