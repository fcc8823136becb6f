// Package validation holds the struct tags shared by the REST binding (gin)
// and the JSON-RPC params binding:
//
//	roomkey   opaque, not blank, valid UTF-8, at most 256 bytes
//	role      A, B or spectator
//	peername  free text, at most 256 characters
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/boardbeam/backend/internal/errors"
)

const ErrEngine errors.Code = "validator_engine"

const MaxRoomKeyBytes = 256

var aliases = map[string]string{
	"role":     "oneof=A B spectator",
	"peername": "max=256",
}

func init() {
	if err := InstallGin(); err != nil {
		panic(err)
	}
}

func roomKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	return len(key) <= MaxRoomKeyBytes && utf8.ValidString(key) && strings.TrimSpace(key) != ""
}

// Install registers the tags on v.
func Install(v *validator.Validate) error {
	if err := v.RegisterValidation("roomkey", roomKey); err != nil {
		return err
	}
	for tag, alias := range aliases {
		v.RegisterAlias(tag, alias)
	}
	return nil
}

// InstallGin registers the tags on gin's default binding validator.
func InstallGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.Newf(ErrEngine, "unexpected gin validator engine %T", binding.Validator.Engine())
	}
	return Install(v)
}

// FieldError is the JSON shape of one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Fields lists the failed fields of a validator error, nothing for any
// other error.
func Fields(err error) []FieldError {
	verrs, ok := errors.As[validator.ValidationErrors](err)
	if !ok {
		return nil
	}
	out := make([]FieldError, 0, len(*verrs))
	for _, e := range *verrs {
		out = append(out, FieldError{Field: e.Field(), Message: e.Error()})
	}
	return out
}
