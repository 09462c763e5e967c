package loader

import (
	"fmt"
	"strings"
)

// ParseError reports a document that could not be decoded or does not match
// its schema.
type ParseError struct {
	Source  string
	Format  Format
	Details []string
	Err     error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse %s", e.Source)
	if e.Format != "" {
		fmt.Fprintf(&b, " (%s)", e.Format)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Details) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(e.Details, "; "))
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) ErrorCode() string {
	return "PARSE_ERROR"
}
