package utils

import "errors"

// ErrorRecordNotFound is what the model fetch helpers return for a missing or
// tenant-mismatched row; callers map it to their own not-found types.
var ErrorRecordNotFound = errors.New("record not found")
