// Package errors provides examples of structured error handling in Lumen.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/lumen/pkg/errors"
)

// Example demonstrates basic error creation.
func Example() {
	err := errors.New(errors.ErrorTypeSchema, "column lengths differ").
		WithDetail("column", "animals").
		WithDetail("length", 6)

	fmt.Println(err.Error())

	// Output:
	// schema: column lengths differ
}

// ExampleWrap shows how an adapter wraps a reader failure.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "CSV parse error")

	if errors.IsType(err, errors.ErrorTypeParse) {
		fmt.Println(err)
	}

	// Output:
	// parse: CSV parse error: unexpected EOF
}

// ExampleFromPayload shows an error crossing a boundary unchanged.
func ExampleFromPayload() {
	local := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "CSV parse error")
	remote := errors.FromPayload(errors.ToPayload(local))

	fmt.Println(remote.Error() == local.Error())
	fmt.Println(remote.Type)

	// Output:
	// true
	// parse
}
