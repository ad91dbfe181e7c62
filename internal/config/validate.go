package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidStep is returned for a step missing required fields.
	ErrInvalidStep = errors.New("invalid step")
	// ErrSeedOrder is returned when a seed references a row that a later
	// seed in the same plan creates.
	ErrSeedOrder = errors.New("seed references a row seeded later in the plan")
)

// identRegex restricts table, column and role names to plain SQL identifiers.
var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidServiceStates lists the lifecycle transitions a service step accepts.
var ValidServiceStates = map[string]bool{
	"started":   true,
	"stopped":   true,
	"restarted": true,
	"reloaded":  true,
	"enabled":   true,
	"disabled":  true,
}

// Reference points a seed column at a column of another row, located by
// natural key. It is written in a plan as {ref: {table, key, column}}.
type Reference struct {
	Table  string
	Key    map[string]any
	Column string
}

// ParseReference reports whether v is a reference and decodes it.
// A missing column defaults to "id".
func ParseReference(v any) (Reference, bool, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Reference{}, false, nil
	}
	raw, ok := m["ref"]
	if !ok {
		return Reference{}, false, nil
	}
	body, ok := raw.(map[string]any)
	if !ok {
		return Reference{}, true, fmt.Errorf("ref must be a mapping")
	}

	ref := Reference{Column: "id"}
	if t, ok := body["table"].(string); ok {
		ref.Table = t
	}
	if c, ok := body["column"].(string); ok && c != "" {
		ref.Column = c
	}
	if k, ok := body["key"].(map[string]any); ok {
		ref.Key = k
	}
	if ref.Table == "" || len(ref.Key) == 0 {
		return Reference{}, true, fmt.Errorf("ref requires table and key")
	}
	if !identRegex.MatchString(ref.Table) || !identRegex.MatchString(ref.Column) {
		return Reference{}, true, fmt.Errorf("ref table and column must be identifiers")
	}
	return ref, true, nil
}

// ParseMode parses an octal permission string such as "644" or "0640".
func ParseMode(mode string) (os.FileMode, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(mode), 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid mode %q: %w", mode, err)
	}
	if v > 0o7777 {
		return 0, fmt.Errorf("invalid mode %q: out of range", mode)
	}
	return os.FileMode(v), nil
}

// Validate checks the plan for errors and returns the first one found.
func (c *Config) Validate() error {
	if err := c.validateTarget(); err != nil {
		return fmt.Errorf("target validation failed: %w", err)
	}

	for i, s := range c.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, s.Label(), err)
		}
	}

	if c.NeedsDatabase() && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn (or %s) is required for sql and seed steps", EnvDatabaseDSN)
	}

	return c.validateSeedOrder()
}

func (c *Config) validateTarget() error {
	switch c.Target.Type {
	case TargetLocal:
		return nil
	case TargetSSH:
		if c.Target.Host == "" && c.Target.HCloudServer == "" {
			return fmt.Errorf("ssh target requires host or hcloud_server")
		}
		if c.Target.KeyPath == "" {
			return fmt.Errorf("ssh target requires key_path")
		}
		return nil
	default:
		return fmt.Errorf("unknown target type %q", c.Target.Type)
	}
}

func (s Step) validate() error {
	switch s.Kind {
	case KindPackage:
		if s.Package == "" {
			return fmt.Errorf("%w: package is required", ErrInvalidStep)
		}
	case KindFile:
		if s.Path == "" {
			return fmt.Errorf("%w: path is required", ErrInvalidStep)
		}
		if (s.Source == "") == (s.Content == "") {
			return fmt.Errorf("%w: exactly one of source or content is required", ErrInvalidStep)
		}
		if _, err := ParseMode(s.Mode); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStep, err)
		}
	case KindService:
		if s.Service == "" {
			return fmt.Errorf("%w: service is required", ErrInvalidStep)
		}
		if len(s.States) == 0 {
			return fmt.Errorf("%w: at least one state is required", ErrInvalidStep)
		}
		for _, st := range s.States {
			if !ValidServiceStates[st] {
				return fmt.Errorf("%w: unknown service state %q", ErrInvalidStep, st)
			}
		}
	case KindCommand:
		if s.Command == "" {
			return fmt.Errorf("%w: command is required", ErrInvalidStep)
		}
		if s.NotIf != "" && s.OnlyIf != "" {
			return fmt.Errorf("%w: not_if and only_if are mutually exclusive", ErrInvalidStep)
		}
	case KindUser:
		if s.Account == "" {
			return fmt.Errorf("%w: account is required", ErrInvalidStep)
		}
	case KindSQL:
		if (len(s.Statements) == 0) == (s.File == "") {
			return fmt.Errorf("%w: exactly one of statements or file is required", ErrInvalidStep)
		}
		if err := validateRole(s.Role); err != nil {
			return err
		}
	case KindSeed:
		return s.validateSeed()
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidStep, s.Kind)
	}
	return nil
}

func (s Step) validateSeed() error {
	if !identRegex.MatchString(s.Table) {
		return fmt.Errorf("%w: table must be an identifier, got %q", ErrInvalidStep, s.Table)
	}
	if len(s.Key) == 0 {
		return fmt.Errorf("%w: key is required", ErrInvalidStep)
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: columns are required", ErrInvalidStep)
	}
	for col, v := range s.Key {
		if !identRegex.MatchString(col) {
			return fmt.Errorf("%w: key column %q is not an identifier", ErrInvalidStep, col)
		}
		if !isScalar(v) {
			return fmt.Errorf("%w: key column %q must be a plain value, got %T", ErrInvalidStep, col, v)
		}
	}
	for col, v := range s.Columns {
		if !identRegex.MatchString(col) {
			return fmt.Errorf("%w: column %q is not an identifier", ErrInvalidStep, col)
		}
		if _, _, err := ParseReference(v); err != nil {
			return fmt.Errorf("%w: column %q: %v", ErrInvalidStep, col, err)
		}
		// The guard looks rows up by key, so the inserted row must carry
		// exactly the key values.
		if kv, ok := s.Key[col]; ok && !reflect.DeepEqual(kv, v) {
			return fmt.Errorf("%w: column %q repeats key column with a different value (%v, key %v)",
				ErrInvalidStep, col, v, kv)
		}
	}
	return validateRole(s.Role)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func validateRole(role string) error {
	if role != "" && !identRegex.MatchString(role) {
		return fmt.Errorf("%w: role must be an identifier, got %q", ErrInvalidStep, role)
	}
	return nil
}

// validateSeedOrder rejects a seed whose reference is satisfied only by a
// seed that runs after it. References to rows no seed creates are assumed to
// exist already and are checked at run time.
func (c *Config) validateSeedOrder() error {
	for i, s := range c.Steps {
		if s.Kind != KindSeed {
			continue
		}
		for col, v := range s.Columns {
			ref, ok, _ := ParseReference(v)
			if !ok {
				continue
			}
			for j := i + 1; j < len(c.Steps); j++ {
				later := c.Steps[j]
				if later.Kind == KindSeed && later.Table == ref.Table && FormatKey(later.Key) == FormatKey(ref.Key) {
					return fmt.Errorf("%w: step %d column %q needs %s %s from step %d",
						ErrSeedOrder, i+1, col, ref.Table, FormatKey(ref.Key), j+1)
				}
			}
		}
	}
	return nil
}
