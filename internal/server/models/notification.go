package models

import "time"

// Notification title/message codes. The UI resolves them to localized
// strings; the engine only records the numbers.
const (
	NoticeTitleShareRevoked = 10
	NoticeMsgShareRevoked   = 11

	NoticeTitleFileDeleted = 20
	NoticeMsgFileDeleted   = 21
)

// Notification is a per-user notification record created by the fan-out
// after share removal or file deletion. Deleted in bulk when the user
// acknowledges.
type Notification struct {
	ID          string
	UserID      string
	TitleCode   int
	MessageCode int
	CreatedAt   time.Time
}
