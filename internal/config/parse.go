// internal/config/parse.go
package config

import (
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/browserpilot/browserpilot/api/schemas"
)

// Strict typed parsers over the raw string values viper hands back. Viper's
// own cast-based getters coerce malformed input to zero values, which would
// silently default; these parsers fail instead, naming the key.

func rawString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

// parseBool accepts case-insensitive true/false and nothing else.
func parseBool(v *viper.Viper, key string) (bool, error) {
	s := rawString(v, key)
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, schemas.NewConfigError(key, s, "must be true or false (case-insensitive)")
}

func parsePositiveInt(v *viper.Viper, key string) (int, error) {
	s := rawString(v, key)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, schemas.NewConfigError(key, s, "must be an integer")
	}
	if n <= 0 {
		return 0, schemas.NewConfigError(key, s, "must be a positive integer")
	}
	return n, nil
}

func parseNonNegativeInt(v *viper.Viper, key string) (int, error) {
	s := rawString(v, key)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, schemas.NewConfigError(key, s, "must be an integer")
	}
	if n < 0 {
		return 0, schemas.NewConfigError(key, s, "must not be negative")
	}
	return n, nil
}

func parsePositiveFloat(v *viper.Viper, key string) (float64, error) {
	s := rawString(v, key)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, schemas.NewConfigError(key, s, "must be a number")
	}
	if f <= 0 {
		return 0, schemas.NewConfigError(key, s, "must be a positive number")
	}
	return f, nil
}

// parseEnum lower-cases the value and requires it to be one of accepted.
func parseEnum(v *viper.Viper, key string, accepted []string, reason string) (string, error) {
	s := strings.ToLower(rawString(v, key))
	for _, a := range accepted {
		if s == a {
			return s, nil
		}
	}
	return "", &schemas.ConfigError{Key: key, Value: rawString(v, key), Reason: reason, Accepted: accepted}
}

// parseOutputFormat is parseEnum plus the empty default meaning plain text.
func parseOutputFormat(v *viper.Viper, key string) (schemas.OutputFormat, error) {
	s := strings.ToLower(rawString(v, key))
	if s == "" {
		return schemas.FormatText, nil
	}
	for _, a := range schemas.OutputFormats() {
		if s == a {
			return schemas.OutputFormat(s), nil
		}
	}
	return "", &schemas.ConfigError{
		Key: key, Value: rawString(v, key),
		Reason:   "unknown output format",
		Accepted: append([]string{"(empty for plain text)"}, schemas.OutputFormats()...),
	}
}

// decodeList interprets raw as a JSON array of strings. The empty string is
// an empty list; JSON null is reported separately so callers can preserve
// nullable semantics.
func decodeList(key, s string) (list []string, null bool, err error) {
	if s == "" {
		return []string{}, false, nil
	}
	if err := json.UnmarshalFromString(s, &list); err != nil {
		return nil, false, schemas.NewConfigError(key, s, `must be a JSON array of strings, e.g. ["a","b"]`)
	}
	if list == nil {
		return nil, true, nil
	}
	return list, false, nil
}

// parseStringList returns a never-nil list; JSON null collapses to empty.
func parseStringList(v *viper.Viper, key string) ([]string, error) {
	list, null, err := decodeList(key, rawString(v, key))
	if err != nil {
		return nil, err
	}
	if null {
		return []string{}, nil
	}
	return list, nil
}

// parseNullableList keeps nil (unset or JSON null) distinct from an
// explicitly empty list, which is the allow-nothing case.
func parseNullableList(v *viper.Viper, key string) ([]string, error) {
	if !v.IsSet(key) {
		return nil, nil
	}
	list, null, err := decodeList(key, rawString(v, key))
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	return list, nil
}

// parseLogLevel validates the level name against zap's parser so a typo
// fails at startup instead of degrading to the default level.
func parseLogLevel(v *viper.Viper, key string) (string, error) {
	s := strings.ToLower(rawString(v, key))
	if _, err := zapcore.ParseLevel(s); err != nil {
		return "", &schemas.ConfigError{
			Key: key, Value: rawString(v, key), Reason: "unknown log level",
			Accepted: []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"},
		}
	}
	return s, nil
}
