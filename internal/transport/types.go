package transport

import "context"

// ChatTarget addresses one Telegram chat (and optionally a forum topic thread).
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Adapter is the outbound notification channel boundary.
//
// resaleradar is push-only: the daemon never consumes inbound updates, it
// only delivers messages for newly discovered listings (and, optionally,
// log lines).
type Adapter interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	Stop(ctx context.Context) error
}

// StatusError is implemented by adapter errors that carry an HTTP-ish status
// code from the channel API (e.g. Telegram 429 flood control).
type StatusError interface {
	error
	StatusCode() int
}
