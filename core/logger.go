package core

// Logger is any service that can log & report application events.
// Args may hold errors, extra data maps or the Identity of the caller.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Identity is the authenticated administrator on whose behalf an operation runs.
// Authentication itself happens outside of this application.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}
