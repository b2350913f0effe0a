package graph

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrInvalidConfig is returned when a Graph or query is constructed with a
	// missing or malformed configuration.
	ErrInvalidConfig = errors.New("graph: invalid configuration")

	// ErrNodeNotFound is returned when an operation requires an existing node
	// record.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrValidation is the parent of every missing-argument error.
	ErrValidation = errors.New("graph: invalid argument")

	// ErrUndefinedNode is returned when a node identifier is required but empty.
	ErrUndefinedNode = fmt.Errorf("%w: node is undefined", ErrValidation)

	// ErrUndefinedOrganization is returned when an organization id is required but empty.
	ErrUndefinedOrganization = fmt.Errorf("%w: organization is undefined", ErrValidation)

	// ErrUndefinedType is returned when a record type is required but empty.
	ErrUndefinedType = fmt.Errorf("%w: type is undefined", ErrValidation)

	// ErrUndefinedTarget is returned when an edge has no target node.
	ErrUndefinedTarget = fmt.Errorf("%w: target is undefined", ErrValidation)

	// ErrIncompleteTypeFilter is returned when a property query carries only
	// one of Expression and Value.
	ErrIncompleteTypeFilter = fmt.Errorf("%w: expression and value must be given together", ErrValidation)
)

// ConfigError describes the configuration field that failed validation.
type ConfigError struct {
	Field string
	Tag   string
	Param string
}

func (e *ConfigError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("graph: invalid configuration: %s failed %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("graph: invalid configuration: %s failed %s", e.Field, e.Tag)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// StoreError is returned when a DynamoDB request fails.
type StoreError struct {
	// Op is the DynamoDB operation, e.g. "Query".
	Op string

	// Table is the table the request addressed.
	Table string

	// Key identifies what the request was for: a node key or a shard key.
	Key string

	// Code is the service error code when the failure came from DynamoDB,
	// e.g. "ProvisionedThroughputExceededException".
	Code string

	Err error
}

func (e *StoreError) Error() string {
	msg := "graph: " + e.Op
	if e.Key != "" {
		msg += " " + e.Key
	}
	return msg + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeError(op, table, key string, err error) error {
	se := &StoreError{Op: op, Table: table, Key: key, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		se.Code = apiErr.ErrorCode()
	}
	return se
}
