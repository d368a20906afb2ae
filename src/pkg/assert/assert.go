package assert

import "fmt"

// Assert panics when cond does not hold. It is reserved for
// programming errors: conditions that can only be false when the
// caller violated a documented contract.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
