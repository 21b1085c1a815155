// Package logx wraps zerolog behind a small Logger/Field API so components
// never depend on the logging backend directly.
//
// The Service owns the active sink set (console, file, Telegram mirror) and
// can swap it at runtime via Apply(); Loggers created from a Service stay
// live across Apply calls.
package logx
