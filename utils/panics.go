package utils

import "fmt"

// RecoverWithError turns a panic of the deferring function into *err. A
// panic with an error value stays reachable through errors.Is.
func RecoverWithError(err *error) {
	rv := recover()
	if rv == nil {
		return
	}
	if cause, ok := rv.(error); ok {
		*err = fmt.Errorf("recovered panic: %w", cause)
		return
	}
	*err = fmt.Errorf("recovered panic: %v", rv)
}
