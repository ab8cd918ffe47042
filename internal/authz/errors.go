// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package authz

import (
	"github.com/samber/oops"
)

// Error codes shared across the authorization core.
const (
	// CodeAuthorizationDenied marks permission or tenant-scope denials.
	// Always 403-equivalent, never retried.
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"

	// CodeValidationFailed marks malformed role/policy configuration,
	// rejected at write time and never partially applied.
	CodeValidationFailed = "VALIDATION_FAILED"

	// CodeVersionConflict marks a lost-update race on a tenant's policy list.
	CodeVersionConflict = "VERSION_CONFLICT"

	// CodeConfigInvalid marks invalid process configuration.
	CodeConfigInvalid = "CONFIG_INVALID"
)

// deniedMessage is the uniform user-facing denial text. Denials never reveal
// whether a resource exists versus whether access was refused.
const deniedMessage = "not authorized"

// Denied returns a uniform AUTHORIZATION_DENIED error. The diagnostic
// key/value pairs end up in logs, never in the user-facing message.
func Denied(kv ...any) error {
	return oops.Code(CodeAuthorizationDenied).With(kv...).New(deniedMessage)
}

// Validation returns a VALIDATION_FAILED error with a formatted message.
func Validation(format string, args ...any) error {
	return oops.Code(CodeValidationFailed).Errorf(format, args...)
}

// IsDenied reports whether err is an authorization denial.
func IsDenied(err error) bool {
	return hasCode(err, CodeAuthorizationDenied)
}

// IsValidation reports whether err is a configuration validation failure.
func IsValidation(err error) bool {
	return hasCode(err, CodeValidationFailed)
}

// IsVersionConflict reports whether err is a policy-list version conflict.
func IsVersionConflict(err error) bool {
	return hasCode(err, CodeVersionConflict)
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}
