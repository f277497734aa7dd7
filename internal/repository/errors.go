// Package repository implements persistence for users and password reset
// requests.  The sentinel values below let the service layer tell expected
// misses apart from infrastructure failures.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist, or, for
// conditional operations, when no row satisfied the condition.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned by user creation when the email is taken.
var ErrEmailExists = errors.New("email already exists")
