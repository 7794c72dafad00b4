// Package checkpoint decorates errors with the position they passed through,
// so that an error coming out of a mount reads like a short trace of sector
// reads, decoders and validators.
// The decorated errors still work with errors.Is and errors.As for both the
// kind they were tagged with and the original cause.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"
)

// From decorates err with the position of the caller.
// It returns nil for a nil err. io.EOF and io.ErrUnexpectedEOF are passed
// through undecorated because callers compare them by identity.
func From(err error) error {
	switch err {
	case nil:
		return nil
	case io.EOF, io.ErrUnexpectedEOF:
		return err
	}

	return newPoint(err, nil)
}

// Wrap tags cause with kind and the position of the caller.
// kind is usually one of the exported sentinel errors of a package:
//  func readSomething() error {
//  	_, err := store.Read(buf)
//  	return checkpoint.Wrap(err, ErrIO)
//  }
// errors.Is(err, ErrIO) and errors.Is(err, <the store error>) both hold afterwards.
// Wrap returns nil if cause is nil, so it can be used on every return path.
// A nil kind still records the position.
func Wrap(cause, kind error) error {
	if cause == nil {
		return nil
	}

	return newPoint(kind, cause)
}

func newPoint(kind, cause error) *point {
	// Skip newPoint and the exported function.
	_, file, line, ok := runtime.Caller(2)

	return &point{
		kind:  kind,
		cause: cause,

		known: ok,
		file:  filepath.Base(file),
		line:  line,
	}
}

type point struct {
	kind  error
	cause error

	known bool
	file  string
	line  int
}

func (p *point) position() string {
	if !p.known {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", p.file, p.line)
}

func (p *point) Error() string {
	var b strings.Builder
	b.WriteString("at ")
	b.WriteString(p.position())

	if p.kind != nil {
		b.WriteString("\n\t")
		b.WriteString(strings.ReplaceAll(p.kind.Error(), "\n", "\n\t"))
	}

	if p.cause != nil {
		b.WriteString("\n")
		if _, ok := p.cause.(*point); ok {
			b.WriteString(p.cause.Error())
		} else {
			b.WriteString("at unknown\n\t")
			b.WriteString(strings.ReplaceAll(p.cause.Error(), "\n", "\n\t"))
		}
	}

	return b.String()
}

func (p *point) Unwrap() error {
	return p.cause
}

func (p *point) Is(target error) bool {
	return p.kind != nil && errors.Is(p.kind, target)
}

func (p *point) As(target interface{}) bool {
	return p.kind != nil && errors.As(p.kind, target)
}
