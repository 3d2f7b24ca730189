package faultline

import (
	"fmt"

	"github.com/google/uuid"
)

// Params carries caller-supplied key/value metadata for a notice.
type Params map[string]any

// Notice is the in-flight representation of a captured error plus metadata.
// It is built per capture call, mutated in place by filter stages, and read
// by a sender. A notice is not safe for concurrent mutation; each capture
// call owns its own notice until it is handed to a sender.
type Notice struct {
	// ID is a locally generated correlation identifier used in logs. The
	// remote endpoint assigns its own identifier on acceptance.
	ID string

	ErrorType    string
	ErrorMessage string
	Backtrace    []Frame

	Params  Params
	Context map[string]string
	Env     map[string]string

	// Ignored marks the notice for suppression. Once set, the notice must
	// never be delivered.
	Ignored bool
}

// Ignore marks the notice as suppressed.
func (n *Notice) Ignore() { n.Ignored = true }

// mergeParams unions the supplied params into the notice, later keys
// overwriting earlier ones on conflict.
func (n *Notice) mergeParams(params Params) {
	if len(params) == 0 {
		return
	}
	if n.Params == nil {
		n.Params = make(Params, len(params))
	}
	for k, v := range params {
		n.Params[k] = v
	}
}

// newNotice wraps an arbitrary captured value into a Notice. The boundary is
// a tagged union: an already-built *Notice has the params merged into it and
// is otherwise returned unchanged (no second backtrace synthesis); an error
// is wrapped, reusing its own stack when it carries one; any other value
// becomes a generic runtime error holding its textual representation.
func newNotice(v any, params Params) *Notice {
	switch arg := v.(type) {
	case *Notice:
		arg.mergeParams(params)
		return arg
	case error:
		n := &Notice{
			ID:           uuid.NewString(),
			ErrorType:    fmt.Sprintf("%T", arg),
			ErrorMessage: arg.Error(),
			Context:      map[string]string{},
			Env:          map[string]string{},
		}
		if st, ok := arg.(stackTracer); ok && len(st.Stack()) > 0 {
			n.Backtrace = st.Stack()
		} else {
			n.Backtrace = captureStack(2)
		}
		n.mergeParams(params)
		return n
	default:
		n := &Notice{
			ID:           uuid.NewString(),
			ErrorType:    "RuntimeError",
			ErrorMessage: fmt.Sprintf("%v", arg),
			Backtrace:    captureStack(2),
			Context:      map[string]string{},
			Env:          map[string]string{},
		}
		n.mergeParams(params)
		return n
	}
}
