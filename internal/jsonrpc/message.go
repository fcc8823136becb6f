package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/boardbeam/backend/internal/errors"
)

const version = "2.0"

const (
	ErrClosed errors.Code = "closed"
	ErrEncode errors.Code = "encode"
)

// Error codes defined by JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is the error object of a response. Handlers return it to control
// what the caller sees, any other error is reported as an internal error.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func ErrInvalidParams(message string) *Error {
	return &Error{Code: CodeInvalidParams, Message: message}
}

func ErrMethodNotFound(method string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: "method not found: " + method}
}

func ErrInternal(message string) *Error {
	return &Error{Code: CodeInternalError, Message: message}
}

type kind int

const (
	kindInvalid kind = iota
	kindRequest
	kindNotification
	kindResponse
)

// envelope is any message on the wire. ID keeps the raw JSON of the id so
// string and numeric ids round trip untouched.
type envelope struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  *json.RawMessage `json:"params,omitempty"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

func hasID(id json.RawMessage) bool {
	return len(id) > 0 && !bytes.Equal(id, []byte("null"))
}

func (e *envelope) kind() kind {
	if e.JSONRPC != "" && e.JSONRPC != version {
		return kindInvalid
	}
	switch {
	case e.Method != "":
		if e.Result != nil || e.Error != nil {
			return kindInvalid
		}
		if hasID(e.ID) {
			return kindRequest
		}
		return kindNotification
	case e.Result != nil || e.Error != nil:
		if hasID(e.ID) {
			return kindResponse
		}
	}
	return kindInvalid
}

func rawParams(v any) (*json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, err, "marshal params")
	}
	raw := json.RawMessage(bs)
	return &raw, nil
}

func newRequest(method string, params any) (*envelope, error) {
	raw, err := rawParams(params)
	if err != nil {
		return nil, err
	}
	id := json.RawMessage(strconv.Quote(uuid.NewString()))
	return &envelope{JSONRPC: version, ID: id, Method: method, Params: raw}, nil
}

func newNotification(method string, params any) (*envelope, error) {
	raw, err := rawParams(params)
	if err != nil {
		return nil, err
	}
	return &envelope{JSONRPC: version, Method: method, Params: raw}, nil
}

func newResult(id json.RawMessage, result any) (*envelope, error) {
	bs, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Wrap(ErrEncode, err, "marshal result")
	}
	raw := json.RawMessage(bs)
	return &envelope{JSONRPC: version, ID: id, Result: &raw}, nil
}

func newErrorResponse(id json.RawMessage, rpcErr *Error) *envelope {
	return &envelope{JSONRPC: version, ID: id, Error: rpcErr}
}
