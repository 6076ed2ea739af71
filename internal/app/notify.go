package app

// NoticeKind classifies a board notice.
type NoticeKind string

// NoticeSuccess and NoticeError are the notice kinds.
const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a fire-and-forget message for the user.
type Notice struct {
	Kind    NoticeKind
	Title   string
	Message string
	// Err is set on error notices.
	Err error
}

// Notifier receives board notices. It must not block.
type Notifier func(Notice)
