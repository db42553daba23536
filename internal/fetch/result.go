package fetch

import "fmt"

// Kind classifies why a count could not be retrieved.
type Kind int

const (
	KindInvalidQuery Kind = iota
	KindTimeout
	KindElementNotFound
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindInvalidQuery:
		return "invalid_query"
	case KindTimeout:
		return "timeout"
	case KindElementNotFound:
		return "element_not_found"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Error describes a failed fetch for one query.
type Error struct {
	Query string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Query, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
