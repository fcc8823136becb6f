package jsonrpc

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/boardbeam/backend/internal/validation"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := validation.Install(v); err != nil {
		panic(err)
	}
	// report fields by their wire name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// ShouldBindParams unmarshals params into v and validates its struct tags.
// The returned *Error names the offending fields.
func ShouldBindParams(params *json.RawMessage, v any) error {
	if params == nil {
		return ErrInvalidParams("params required")
	}
	if err := json.Unmarshal(*params, v); err != nil {
		return ErrInvalidParams("invalid params")
	}
	if err := validate.Struct(v); err != nil {
		var fields []string
		for _, e := range validation.Fields(err) {
			fields = append(fields, e.Field)
		}
		if len(fields) == 0 {
			return ErrInvalidParams("invalid params")
		}
		return ErrInvalidParams("invalid params: " + strings.Join(fields, ","))
	}
	return nil
}
