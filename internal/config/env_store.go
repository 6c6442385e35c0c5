// Package config manages the .env key/value store and derives runtime settings from it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const masked = "***"

var (
	// ErrInvalidKey is returned for keys that are not valid environment variable names.
	ErrInvalidKey = errors.New("key must match [A-Z_][A-Z0-9_]*")

	// ErrUnsupportedValue is returned for values the dotenv format cannot hold
	// without loss: a trailing backslash, or a backslash followed by n or r
	// together with a quote or line break.
	ErrUnsupportedValue = errors.New("value cannot be stored in the env file")
)

var keyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// secretMarkers flag keys whose values are masked in logs.
var secretMarkers = []string{"SECRET", "PASS", "PWD", "TOKEN", "KEY"}

// EnvStore is a .env file backed key/value store. Keys are case insensitive and
// stored upper case. Reads and writes are safe for concurrent use.
type EnvStore struct {
	path  string
	debug bool
	log   zerolog.Logger

	mu   sync.RWMutex
	vars map[string]string
}

// NewEnvStore loads path, creating an empty file when it does not exist.
// In debug mode values are logged in clear text.
func NewEnvStore(path string, debug bool, log zerolog.Logger) (*EnvStore, error) {
	s := &EnvStore{
		path:  path,
		debug: debug,
		log:   log,
		vars:  map[string]string{},
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *EnvStore) Path() string {
	return s.path
}

// Reload discards in-memory values and reads the file again.
func (s *EnvStore) Reload() error {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		s.log.Warn().Str("path", s.path).Msg("Env file not found, creating an empty one")
		if err := os.WriteFile(s.path, nil, 0o600); err != nil {
			return fmt.Errorf("failed to create env file: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read env file %s: %w", s.path, err)
	}

	vars := make(map[string]string, len(v.AllKeys()))
	for _, k := range v.AllKeys() {
		key, value := normalizeKey(k), v.GetString(k)
		if err := validate(key, value); err != nil {
			s.log.Warn().Err(err).Str("path", s.path).Msg("Skipping env file entry")
			continue
		}
		vars[key] = value
	}

	s.mu.Lock()
	s.vars = vars
	s.mu.Unlock()

	s.log.Info().Str("path", s.path).Int("count", len(vars)).Msg("Env file loaded")
	return nil
}

// Get returns the value of key. The process environment takes precedence over
// the file; def is returned when neither has the key.
func (s *EnvStore) Get(key, def string) string {
	key = normalizeKey(key)
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.vars[key]; ok {
		return v
	}
	return def
}

// Exists reports whether key is defined in the file.
func (s *EnvStore) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.vars[normalizeKey(key)]
	return ok
}

// Set defines key and writes the file.
func (s *EnvStore) Set(key, value string) error {
	key = normalizeKey(key)
	if err := validate(key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.vars[key] = value
	if err := s.persist(); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Str("value", s.display(key, value)).Msg("Variable set")
	return nil
}

// Remove deletes key and writes the file. It reports whether the key existed.
func (s *EnvStore) Remove(key string) (bool, error) {
	key = normalizeKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vars[key]; !ok {
		s.log.Warn().Str("key", key).Msg("Variable to remove not found")
		return false, nil
	}

	delete(s.vars, key)
	if err := s.persist(); err != nil {
		return false, err
	}

	s.log.Info().Str("key", key).Msg("Variable removed")
	return true, nil
}

// All returns a copy of the file values.
func (s *EnvStore) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.vars)
}

// Export writes the file values to w as an indented JSON object.
func (s *EnvStore) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s.All()); err != nil {
		return fmt.Errorf("failed to export variables: %w", err)
	}

	s.log.Info().Str("path", s.path).Msg("Variables exported")
	return nil
}

// Import merges a JSON object of string values read from r and writes the file.
func (s *EnvStore) Import(r io.Reader) (int, error) {
	var values map[string]string
	if err := json.NewDecoder(r).Decode(&values); err != nil {
		return 0, fmt.Errorf("failed to decode variables: %w", err)
	}

	normalized := make(map[string]string, len(values))
	for k, v := range values {
		k = normalizeKey(k)
		if err := validate(k, v); err != nil {
			return 0, err
		}
		normalized[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.vars, normalized)
	if err := s.persist(); err != nil {
		return 0, err
	}

	s.log.Info().Int("count", len(values)).Msg("Variables imported")
	return len(values), nil
}

// persist writes all values to the file, one quoted KEY="value" line per key
// sorted by name. Callers hold the write lock.
func (s *EnvStore) persist() error {
	var b strings.Builder
	for _, k := range slices.Sorted(maps.Keys(s.vars)) {
		line, err := formatLine(k, s.vars[k])
		if err != nil {
			return err
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write env file %s: %w", s.path, err)
	}
	return nil
}

// formatLine renders a value so the dotenv reader returns it unchanged.
// Double quoted values are unescaped and expanded on read, so quotes, dollars
// and line breaks are escaped. Values with backslashes the reader would
// misinterpret fall back to single quotes, which are read verbatim.
func formatLine(key, value string) (string, error) {
	if !strings.HasSuffix(value, `\`) && !strings.Contains(value, `\n`) && !strings.Contains(value, `\r`) {
		return key + `="` + dquoteEscaper.Replace(value) + `"`, nil
	}
	if !strings.HasSuffix(value, `\`) && !strings.ContainsAny(value, "'\r\n") {
		return key + `='` + value + `'`, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedValue, key)
}

var dquoteEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`$`, `\$`,
	"\n", `\n`,
	"\r", `\r`,
)

func validate(key, value string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if _, err := formatLine(key, value); err != nil {
		return err
	}
	return nil
}

func (s *EnvStore) display(key, value string) string {
	if s.debug || !isSecret(key) {
		return value
	}
	return masked
}

func isSecret(key string) bool {
	for _, m := range secretMarkers {
		if strings.Contains(key, m) {
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}
