// Package interactive collects login-gated or script-rendered platforms by
// driving a browser session through an explicit state machine.
package interactive

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by a Session when a selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// Session is one live automation session (a browser tab).
type Session interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	CurrentURL(ctx context.Context) (string, error)
	ScrollToBottom(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Launcher opens a fresh Session for a single collection call.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
