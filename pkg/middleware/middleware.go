package middleware

import "net/http"

// Func wraps a handler with behavior that runs around it.
type Func func(http.Handler) http.Handler

// System holds the request pipeline of a module. Middleware registered
// first sees the request first.
type System interface {
	Use(fns ...Func)
	Len() int
	Apply(handler http.Handler) http.Handler
}

type stack struct {
	fns []Func
}

func New() System {
	return &stack{}
}

// Use appends fns in order. Nil entries are skipped so optional middleware
// can be passed unconditionally.
func (s *stack) Use(fns ...Func) {
	for _, fn := range fns {
		if fn != nil {
			s.fns = append(s.fns, fn)
		}
	}
}

func (s *stack) Len() int {
	return len(s.fns)
}

func (s *stack) Apply(handler http.Handler) http.Handler {
	for i := len(s.fns) - 1; i >= 0; i-- {
		handler = s.fns[i](handler)
	}
	return handler
}
