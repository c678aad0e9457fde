package configparser

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"
)

// ParseEnv fills the struct pointed to by cfg from environment variables
// using `env` tags, falling back to the `default` tag when the variable is
// unset. Nested structs are walked recursively; fields without an `env` tag
// and unexported fields are skipped.
func ParseEnv(cfg any) error {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("configparser: expected non-nil struct pointer, got %T", cfg)
	}
	return parseStruct(v.Elem())
}

func parseStruct(v reflect.Value) error {
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("configparser: expected struct, got %s", v.Kind())
	}

	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		value := v.Field(i)

		if !value.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if _, tagged := field.Tag.Lookup("env"); !tagged {
				if err := parseStruct(value); err != nil {
					return err
				}
				continue
			}
		}

		envName, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}

		raw := os.Getenv(envName)
		if raw == "" {
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		if err := setField(value, raw); err != nil {
			return fmt.Errorf("configparser: field %s (%s): %w", field.Name, envName, err)
		}
	}

	return nil
}

func setField(v reflect.Value, raw string) error {
	// time.Duration needs its own parser before the generic int path
	if v.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", v.Kind())
	}

	return nil
}
