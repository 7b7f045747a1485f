/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package store defines the backing store contract for User records.  The
// GraphQL layer only ever sees a Store; memstore, dgstore and badgerstore
// provide the implementations.
package store

import (
	"context"
	"strconv"
	"strings"
	"unicode"
)

// User is the only entity kept by a Store.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Patch is a merge-patch for a User: nil fields keep their current value.
type Patch struct {
	Name  *string
	Email *string
}

// IsEmpty reports whether applying p changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}

// Apply overwrites the fields of u that are set in p.
func (p Patch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
}

// Store is the capability set every backing store provides.
//
// Lookups of an id that matches nothing are not errors: Get and Update return
// (nil, nil) and Delete returns false.  Errors are reserved for faults in the
// store itself, and are passed through to the caller untranslated.
type Store interface {
	Get(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, name, email string) (*User, error)
	Update(ctx context.Context, id string, p Patch) (*User, error)
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// ParseSeqID reads the ids of stores that number their users the way a
// JavaScript parseInt would: leading white space is skipped, an optional sign
// and 0x prefix are allowed, and the longest run of digits after them is the
// id, so "1abc", " 1", "+1" and "1.0" all read as 1.  ok is false when there
// are no digits, the value is negative, or it doesn't fit in a uint64; such an
// id matches no user.
func ParseSeqID(id string) (n uint64, ok bool) {
	s := strings.TrimLeftFunc(id, unicode.IsSpace)

	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	base := 10
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	end := strings.IndexFunc(s, func(r rune) bool { return !isDigit(r, base) })
	if end < 0 {
		end = len(s)
	}
	if end == 0 {
		return 0, false
	}

	n, err := strconv.ParseUint(s[:end], base, 64)
	if err != nil || (neg && n != 0) {
		return 0, false
	}
	return n, true
}

func isDigit(r rune, base int) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case base == 16:
		return (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
	default:
		return false
	}
}

// FormatSeqID is the inverse of ParseSeqID.
func FormatSeqID(n uint64) string {
	return strconv.FormatUint(n, 10)
}
