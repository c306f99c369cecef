package config

import (
	"fmt"
	"os"
)

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// ExitOnError exits through Exitf when err is non-nil, prefixing the message
// with what was being attempted.
func ExitOnError(err error, doing string) {
	if err == nil {
		return
	}
	Exitf("%s: %v", doing, err)
}
