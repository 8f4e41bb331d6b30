package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSchema      = errors.New("schema error")
	ErrConfig      = errors.New("config error")
	ErrReferential = errors.New("referential error")
)

// SchemaError reports a malformed or inconsistent schema document.
type SchemaError struct {
	Table string
	Field string
	Msg   string
	Err   error
}

func (e *SchemaError) Error() string {
	return formatErr("schema", e.Table, e.Field, e.Msg, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ConfigError reports an invalid generator configuration.
type ConfigError struct {
	Table string
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	return formatErr("config", e.Table, e.Field, e.Msg, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ReferentialError reports a foreign-key column without a key range.
type ReferentialError struct {
	Table  string
	Column string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("referential: table '%s': no key range supplied for foreign key column '%s'", e.Table, e.Column)
}

func (e *ReferentialError) Is(target error) bool { return target == ErrReferential }

func formatErr(kind, table, field, msg string, cause error) string {
	s := kind + ":"
	if table != "" {
		s += fmt.Sprintf(" table '%s':", table)
	}
	if field != "" {
		s += fmt.Sprintf(" %s:", field)
	}
	s += " " + msg
	if cause != nil {
		s += ": " + cause.Error()
	}
	return s
}
