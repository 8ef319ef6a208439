package errors

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Code int

const (
	CodeInternal Code = iota
	CodeInvalidArgument
	// CodeTransport is a network or transport level failure.
	CodeTransport
	// CodeRemoteAPI is a logical error reported by the upstream API despite a successful transport.
	CodeRemoteAPI
	// CodeParse is a malformed or unexpected payload.
	CodeParse
	CodeNoCatalog
	CodeNoPoster
	CodeNoCrossReference
)

var code2name = map[Code]string{
	CodeInternal:         "internal error",
	CodeInvalidArgument:  "invalid argument",
	CodeTransport:        "transport error",
	CodeRemoteAPI:        "remote api error",
	CodeParse:            "parse error",
	CodeNoCatalog:        "no catalog loaded",
	CodeNoPoster:         "no poster found",
	CodeNoCrossReference: "no cross reference match",
}

var code2grpc = map[Code]codes.Code{
	CodeInternal:         codes.Internal,
	CodeInvalidArgument:  codes.InvalidArgument,
	CodeTransport:        codes.Unavailable,
	CodeRemoteAPI:        codes.FailedPrecondition,
	CodeParse:            codes.DataLoss,
	CodeNoCatalog:        codes.FailedPrecondition,
	CodeNoPoster:         codes.NotFound,
	CodeNoCrossReference: codes.NotFound,
}

var code2http = map[Code]int{
	CodeInternal:         http.StatusInternalServerError,
	CodeInvalidArgument:  http.StatusBadRequest,
	CodeTransport:        http.StatusBadGateway,
	CodeRemoteAPI:        http.StatusBadGateway,
	CodeParse:            http.StatusBadGateway,
	CodeNoCatalog:        http.StatusConflict,
	CodeNoPoster:         http.StatusNotFound,
	CodeNoCrossReference: http.StatusNotFound,
}

func (c Code) String() string {
	if s, ok := code2name[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrTransport  = New(CodeTransport)
	ErrRemoteAPI  = New(CodeRemoteAPI)
	ErrParse      = New(CodeParse)
	ErrNoCatalog  = New(CodeNoCatalog)
	ErrNoPoster   = New(CodeNoPoster)
	ErrNoCrossRef = New(CodeNoCrossReference)
	ErrInvalidArg = New(CodeInvalidArgument)
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	err     error
}

func New(code Code, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Message: code.String(),
	}

	for _, opt := range opts {
		opt.apply(e)
	}

	return e
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Message == e.Code.String() {
		s = e.Message
	}
	if e.err != nil {
		s += fmt.Sprintf(": %s", e.err)
	}

	return s
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *Error) GRPCStatus() *status.Status {
	c, ok := code2grpc[e.Code]
	if !ok {
		c = codes.Internal
	}
	return status.New(c, e.Message)
}

func (e *Error) HTTPStatusCode() int {
	if c, ok := code2http[e.Code]; ok {
		return c
	}

	return http.StatusInternalServerError
}

func Convert(err error) *Error {
	var e *Error
	if !errors.As(err, &e) {
		return Internal(err)
	}

	return e
}

// HasCode reports whether any error in err's chain is an *Error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	for err != nil {
		if errors.As(err, &e) {
			if e.Code == code {
				return true
			}
			err = e.err
			continue
		}
		return false
	}
	return false
}

func Internal(err error) *Error {
	return New(CodeInternal, WithCause(err))
}

func Transport(err error) *Error {
	return New(CodeTransport, WithCause(err))
}

func RemoteAPI(message string) *Error {
	return New(CodeRemoteAPI, WithMessagef("%s", message))
}

func Parse(err error) *Error {
	return New(CodeParse, WithCause(err))
}

type Option interface {
	apply(*Error)
}

type optionFunc func(*Error)

func (f optionFunc) apply(e *Error) {
	f(e)
}

func WithCause(err error) Option {
	return optionFunc(func(e *Error) {
		e.err = err
	})
}

func WithMessagef(format string, args ...any) Option {
	return optionFunc(func(e *Error) {
		e.Message = fmt.Sprintf(format, args...)
	})
}
