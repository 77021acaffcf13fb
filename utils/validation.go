package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field names in errors use json tags.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
			_, err := ParseClock(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// ValidateStruct returns nil or a field -> failed rule map.
func ValidateStruct(s interface{}) map[string]string {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Field()] = rule
	}
	return out
}

// UpdateMap turns a patch struct of pointer fields into a column map keyed by
// json tag. Nil pointers are skipped. Fields tagged `update:"nullable"` map an
// empty string to NULL so references can be cleared.
func UpdateMap(patch interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	v := reflect.ValueOf(patch)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return out
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		fv := v.Field(i)
		if fv.Kind() != reflect.Ptr {
			continue
		}
		if fv.IsNil() {
			continue
		}
		elem := fv.Elem()
		if f.Tag.Get("update") == "nullable" && elem.Kind() == reflect.String && strings.TrimSpace(elem.String()) == "" {
			out[name] = nil
			continue
		}
		if d, ok := elem.Interface().(Date); ok {
			if d.IsZero() {
				out[name] = nil
			} else {
				out[name] = d.Std()
			}
			continue
		}
		out[name] = elem.Interface()
	}
	return out
}
