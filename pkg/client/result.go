package client

type State int

const (
	Loading State = iota
	NotFound
	Found
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case NotFound:
		return "not_found"
	case Found:
		return "found"
	}
	return "unknown"
}

// Result is the value of a query: still loading, resolved absent, or
// resolved to a value. Absent is never an error.
type Result[T any] struct {
	state State
	value T
}

func LoadingResult[T any]() Result[T] { return Result[T]{state: Loading} }
func NotFoundResult[T any]() Result[T] { return Result[T]{state: NotFound} }
func FoundResult[T any](v T) Result[T] { return Result[T]{state: Found, value: v} }

func (r Result[T]) State() State { return r.state }
func (r Result[T]) IsLoading() bool { return r.state == Loading }
func (r Result[T]) IsNotFound() bool { return r.state == NotFound }
func (r Result[T]) IsFound() bool { return r.state == Found }

// Value returns the resolved value and whether there is one.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.state == Found
}
