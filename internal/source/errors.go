package source

import "fmt"

// FetchError reports a failed HTTP exchange with a source. It is local to
// one (source, keyword) search; other keywords and sources proceed.
type FetchError struct {
	Source  string
	Keyword string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch %q: %v", e.Source, e.Keyword, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a response that came back but couldn't be interpreted,
// typically after a site layout change. Same locality as FetchError.
type ParseError struct {
	Source  string
	Keyword string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse %q: %v", e.Source, e.Keyword, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
