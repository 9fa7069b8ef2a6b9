package models

// SessionContext identifies the caller for user-scoped reads.
type SessionContext struct {
	UserID string
}
