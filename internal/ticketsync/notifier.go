package ticketsync

import "log/slog"

// View names a projection the orchestrator refreshes.
type View string

const (
	Global   View = "global"
	Filtered View = "filtered"
	// Single is the per-ticket refresh triggered by push events.
	Single View = "ticket"
)

// Notifier is the UI collaborator that surfaces fetch state to the user.
// Calls are made outside the orchestrator's locks.
type Notifier interface {
	FetchFailed(view View, err error)
	LoadingChanged(view View, loading bool)
	ConnectionFailed(err error)
}

// NotifierFuncs adapts optional callbacks to a Notifier. Nil fields are
// skipped.
type NotifierFuncs struct {
	OnFetchFailed      func(View, error)
	OnLoadingChanged   func(View, bool)
	OnConnectionFailed func(error)
}

func (n NotifierFuncs) FetchFailed(view View, err error) {
	if n.OnFetchFailed != nil {
		n.OnFetchFailed(view, err)
	}
}

func (n NotifierFuncs) LoadingChanged(view View, loading bool) {
	if n.OnLoadingChanged != nil {
		n.OnLoadingChanged(view, loading)
	}
}

func (n NotifierFuncs) ConnectionFailed(err error) {
	if n.OnConnectionFailed != nil {
		n.OnConnectionFailed(err)
	}
}

// LogNotifier reports through slog.
type LogNotifier struct{}

func (LogNotifier) FetchFailed(view View, err error) {
	slog.Warn("ticket fetch failed", "view", view, "error", err)
}

func (LogNotifier) LoadingChanged(view View, loading bool) {
	slog.Debug("loading changed", "view", view, "loading", loading)
}

func (LogNotifier) ConnectionFailed(err error) {
	slog.Error("push connection lost", "error", err)
}
