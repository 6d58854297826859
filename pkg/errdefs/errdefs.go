package errdefs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/go-wordwrap"
)

// Class identifies how a caller should treat an error
type Class int

const (
	// ClassSourceFailure is an upstream authority that is unreachable, malformed or rejecting
	ClassSourceFailure Class = iota
	// ClassUnconfigured is a well-formed "nothing here" state
	ClassUnconfigured
	// ClassNotFound is a named entity absent among otherwise healthy data
	ClassNotFound
	// ClassInvalidInput is a malformed client request, detected before any upstream call
	ClassInvalidInput
	// ClassConflict is a config record that changed between read and write
	ClassConflict
)

func (c Class) String() string {
	switch c {
	case ClassSourceFailure:
		return "source failure"
	case ClassUnconfigured:
		return "unconfigured"
	case ClassNotFound:
		return "not found"
	case ClassInvalidInput:
		return "invalid input"
	case ClassConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a classified error
type Error struct {
	Class   Class
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Unconfigured creates an unconfigured-state error
func Unconfigured(msg string) error {
	return &Error{Class: ClassUnconfigured, Message: msg}
}

// NotFound creates a not-found error
func NotFound(msg string) error {
	return &Error{Class: ClassNotFound, Message: msg}
}

// InvalidInput creates a client input error
func InvalidInput(msg string) error {
	return &Error{Class: ClassInvalidInput, Message: msg}
}

// Conflict creates a write conflict error
func Conflict(msg string, cause error) error {
	return &Error{Class: ClassConflict, Message: msg, Cause: cause}
}

// SourceFailure wraps an authority fault
func SourceFailure(msg string, cause error) error {
	return &Error{Class: ClassSourceFailure, Message: msg, Cause: cause}
}

// ClassOf returns the class of err. Unclassified errors count as source failures.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassSourceFailure
}

func IsUnconfigured(err error) bool { return err != nil && ClassOf(err) == ClassUnconfigured }
func IsNotFound(err error) bool     { return err != nil && ClassOf(err) == ClassNotFound }
func IsInvalidInput(err error) bool { return err != nil && ClassOf(err) == ClassInvalidInput }
func IsConflict(err error) bool     { return err != nil && ClassOf(err) == ClassConflict }

// wrapWidth is the column at which Readable breaks lines
const wrapWidth = 100

// Readable makes an upstream error message fit for humans: literal escape
// sequences such as \n and \t are resolved and every line is wrapped.
// Unknown escapes are kept as written.
func Readable(msg string) string {
	var out []string
	for _, line := range strings.Split(msg, "\n") {
		for _, l := range strings.Split(unescape(line), "\n") {
			out = append(out, wrap(l))
		}
	}
	return strings.Join(out, "\n")
}

// Message returns the readable message of err
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Readable(err.Error())
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	for len(s) > 0 {
		if s[0] != '\\' {
			_, size := utf8.DecodeRuneInString(s)
			b.WriteString(s[:size])
			s = s[size:]
			continue
		}

		c, multibyte, tail, err := strconv.UnquoteChar(s, 0)
		switch {
		case err == nil:
			if c < utf8.RuneSelf || !multibyte {
				b.WriteByte(byte(c))
			} else {
				b.WriteRune(c)
			}
			s = tail
		case len(s) > 1 && (s[1] == '\'' || s[1] == '"'):
			b.WriteByte(s[1])
			s = s[2:]
		default:
			b.WriteByte('\\')
			s = s[1:]
		}
	}
	return b.String()
}

// wrap breaks line at whitespace and splits words longer than wrapWidth
func wrap(line string) string {
	var out []string
	for _, l := range strings.Split(wordwrap.WrapString(line, wrapWidth), "\n") {
		r := []rune(l)
		for len(r) > wrapWidth {
			out = append(out, string(r[:wrapWidth]))
			r = r[wrapWidth:]
		}
		out = append(out, string(r))
	}
	return strings.Join(out, "\n")
}
