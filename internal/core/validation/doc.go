// Package validation turns a raw deployment configuration into validated
// settings.
//
// This package contains the functional core logic for checking the operator's
// configuration before anything is planned. All functions are pure (no I/O,
// no side effects); the configuration is passed in by value.
//
// # Errors
//
// Validate returns a *ValidationError listing every violation. Each violation
// has one of four kinds, usable with errors.Is:
//
//   - ErrMissingRequiredField: a required key is empty
//   - ErrInvalidEnum: ARCHITECTURE is not x86_64 or arm64
//   - ErrOutOfRange: DISK_SIZE_GB or SMTP_PORT is not a number in range
//   - ErrInvalidFormat: a CIDR, hostname or region is malformed, or a value
//     that is written into the bootstrap script contains control characters
//
// # Usage
//
//	settings, err := validation.Validate(env, cfg)
//	if err != nil {
//	    return err // *ValidationError
//	}
package validation
