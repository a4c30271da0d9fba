package registration

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxPhotoBytes bounds an uploaded photo.
const MaxPhotoBytes = 5 << 20

// ErrValidation marks input rejected before any network call.
var ErrValidation = errors.New("invalid registration")

// ValidationError lists the offending fields and their messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid registration: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

// check validates the form and photo and returns the parsed student id.
func check(form Form, photo *Photo) (int64, error) {
	fields := map[string]string{}

	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return 0, err
		}
		for _, fe := range verrs {
			fields[fe.Field()] = message(fe)
		}
	}

	var id int64
	if _, bad := fields["id"]; !bad {
		parsed, err := strconv.ParseInt(strings.TrimSpace(form.ID), 10, 64)
		if err != nil {
			fields["id"] = "must be a number"
		} else {
			id = parsed
		}
	}

	switch {
	case photo == nil || len(photo.Data) == 0:
		fields["photo"] = "a photo is required"
	case len(photo.Data) > MaxPhotoBytes:
		fields["photo"] = fmt.Sprintf("must be at most %d bytes", MaxPhotoBytes)
	}

	if len(fields) > 0 {
		return 0, &ValidationError{Fields: fields}
	}
	return id, nil
}
