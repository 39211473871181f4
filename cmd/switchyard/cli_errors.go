// Copyright 2026 © The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the Switchyard CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/switchyard-io/switchyard/pkg/errors"
)

// CLIError wraps an orchestration error with CLI-specific hints.
type CLIError struct {
	Err  *errors.Error
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{
		Err:  e,
		Hint: hint,
	}
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	msg := e.Err.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError prints the error with appropriate formatting.
func (e *CLIError) PrintError(asJSON bool) {
	if asJSON {
		payload, _ := json.Marshal(map[string]any{
			"error": map[string]string{
				"code":    string(e.Err.Code),
				"message": e.Err.Message,
				"hint":    e.Hint,
			},
		})
		fmt.Fprintln(os.Stderr, string(payload))
		return
	}

	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", FormatErrorCode(e.Err.Code), e.Err.Message)
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

// PrintResultError prints any error from an orchestrator operation, attaching
// a hint appropriate to its classification.
func PrintResultError(err error, asJSON bool) {
	e := errors.AsError(err)
	NewCLIError(e, hintFor(e.Code)).PrintError(asJSON)
}

func hintFor(code errors.ErrorCode) string {
	switch code {
	case errors.CodeNotFound:
		return "run 'switchyard adapters list' to see registered adapters and 'switchyard tools <id>' for their tools"
	case errors.CodeAuthMissing:
		return "set the named environment variables; 'switchyard auth <id>' shows what is missing"
	case errors.CodeRateLimited:
		return "wait for the window to clear, or raise the adapter's rate_limit in config"
	case errors.CodeTimeout:
		return "raise --call-timeout or the adapter's timeout in config"
	case errors.CodeAdapterUnavailable:
		return "check the adapter's location and 'switchyard health' for its probe status"
	default:
		return ""
	}
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)

	hint := "check your configuration file syntax"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(e, "run 'switchyard help' for usage information")
}

// NewNotFoundError creates a not found error with CLI hints.
func NewNotFoundError(resource, name string) *CLIError {
	e := errors.New(errors.CodeNotFound, fmt.Sprintf("%s '%s' not found", resource, name), nil).
		WithContext("resource", resource).
		WithContext("name", name)
	return NewCLIError(e, fmt.Sprintf("check that the %s exists", resource))
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeAuthMissing:
		return "Missing Credentials"
	case errors.CodeRateLimited:
		return "Rate Limited"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeAdapterUnavailable:
		return "Adapter Unavailable"
	case errors.CodeEmptyToolSet:
		return "Empty Tool Set"
	case errors.CodeInvocationFailed:
		return "Invocation Failed"
	default:
		return string(code)
	}
}
