// Package validation provides common validation utilities for configuration
// parameters across the coalesce library.
//
// Constructors with a Safe suffix and the config loader use these helpers so
// that every rejected value surfaces as an *errors.ValidationError with the
// same message shape.
package validation
