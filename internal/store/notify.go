package store

import (
	"log/slog"
)

// Level is the severity of a transient notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows transient, non-blocking messages (toasts).
// Implementations must return promptly.
type Notifier interface {
	Notify(level Level, message string)
}

// Redirector forces navigation back to the login screen, discarding
// whatever the views were showing.
type Redirector interface {
	RedirectToLogin()
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func()

func (f RedirectFunc) RedirectToLogin() { f() }

// LogNotifier writes notifications to a slog.Logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(level Level, message string) {
	log := loggerOr(n.Logger)
	switch level {
	case LevelError:
		log.Error(message, "notification", level)
	case LevelWarning:
		log.Warn(message, "notification", level)
	default:
		log.Info(message, "notification", level)
	}
}

type noRedirect struct{}

func (noRedirect) RedirectToLogin() {}
