// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"errors"
	"strconv"
)

// ErrInvalidID is returned by ParseID for anything that is not a positive
// base-10 integer fitting in a uint.
var ErrInvalidID = errors.New("id must be a positive integer")

// ParseID parses a path segment into a numeric identifier.
//
// Example:
//
//	id, err := utils.ParseID("42")  // 42, nil
//	_, err = utils.ParseID("0")     // ErrInvalidID
//	_, err = utils.ParseID("-3")    // ErrInvalidID
func ParseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, strconv.IntSize)
	if err != nil || n == 0 {
		return 0, ErrInvalidID
	}
	return uint(n), nil
}

// FormatID renders an identifier the way ParseID accepts it.
func FormatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
