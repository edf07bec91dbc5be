package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
	// that embeds EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned when a required environment variable is not set and has no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned when trying to parse an environment variable
	// into an unsupported Go type.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

//nolint:gochecknoglobals
var (
	envConfigType = reflect.TypeOf(EnvConfig{})
	durationType  = reflect.TypeOf(time.Duration(0))
	stringsType   = reflect.TypeOf([]string(nil))
)

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
}

// Namespace returns the prefix the config was parsed with.
func (c EnvConfig) Namespace() string {
	return c.namespace
}

// Parse loads configuration values from environment variables into the provided struct.
//
// The struct must embed EnvConfig. Fields are bound with `env` tags, defaults come
// from `default` tags and nested structs add their `envPrefix` tag to the names of
// their fields. For a namespace "A_B" the variable "A_B_NAME" is tried first, then
// "A_NAME", then "NAME".
//
// Supported kinds: string, bool, signed ints, time.Duration and []string
// (comma separated).
func Parse(_ context.Context, cfg any, namespace string) error {
	root, err := envConfigOf(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	root.namespace = namespace

	return parseStruct(candidatePrefixes(namespace), "", reflect.ValueOf(cfg).Elem())
}

func envConfigOf(cfg any) (*EnvConfig, error) {
	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	v = v.Elem()
	for i := range v.NumField() {
		field := v.Type().Field(i)
		if field.Anonymous && field.Type == envConfigType {
			//nolint:forcetypeassert
			return v.Field(i).Addr().Interface().(*EnvConfig), nil
		}
	}

	return nil, ErrInvalidConfig
}

// candidatePrefixes returns the namespace prefixes from most to least specific.
func candidatePrefixes(namespace string) []string {
	var prefixes []string

	if namespace != "" {
		parts := strings.Split(namespace, "_")
		for i := len(parts); i > 0; i-- {
			prefixes = append(prefixes, strings.Join(parts[:i], "_")+"_")
		}
	}

	return append(prefixes, "")
}

func parseStruct(prefixes []string, envPrefix string, v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		value := v.Field(i)

		if field.Type == envConfigType || !field.IsExported() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := parseStruct(prefixes, envPrefix+field.Tag.Get("envPrefix"), value); err != nil {
				return err
			}

			continue
		}

		if err := parseField(prefixes, envPrefix, field, value); err != nil {
			return fmt.Errorf("parse field: %w", err)
		}
	}

	return nil
}

func lookup(prefixes []string, name string) (string, bool) {
	for _, p := range prefixes {
		if v, ok := os.LookupEnv(p + name); ok {
			return v, true
		}
	}

	return "", false
}

func parseField(prefixes []string, envPrefix string, field reflect.StructField, value reflect.Value) error {
	envTag := field.Tag.Get("env")
	if envTag == "" {
		return nil
	}

	raw, ok := lookup(prefixes, envPrefix+envTag)
	if !ok {
		def, hasDefault := field.Tag.Lookup("default")
		if !hasDefault {
			return fmt.Errorf("%w: %s", ErrVarNotSet, envPrefix+envTag)
		}

		raw = def
	}

	return assign(envPrefix+envTag, raw, value)
}

//nolint:cyclop,exhaustive
func assign(name, raw string, value reflect.Value) error {
	switch {
	case value.Type() == durationType:
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}

		value.SetInt(int64(d))

		return nil
	case value.Type() == stringsType:
		value.Set(reflect.ValueOf(SplitList(raw)))

		return nil
	}

	switch value.Kind() {
	case reflect.String:
		value.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", name, err)
		}

		value.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, value.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", name, err)
		}

		value.SetInt(n)
	default:
		return fmt.Errorf("%w: %s (%v)", ErrUnsupportedVarType, name, value.Kind())
	}

	return nil
}

// SplitList splits a comma separated list, trimming items and dropping empties.
func SplitList(raw string) []string {
	items := []string{}

	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
