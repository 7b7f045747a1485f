/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package api

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()
	require.Empty(t, RequestID(ctx))

	id := NewRequestID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	require.Equal(t, id, RequestID(WithRequestID(ctx, id)))
	require.NotEqual(t, id, NewRequestID())
}

func TestPanicHandler(t *testing.T) {
	var got error
	func() {
		defer PanicHandler(context.Background(), func(err error) { got = err },
			"query { getUsers { id } }")
		panic("resolver exploded")
	}()
	require.EqualError(t, got, "Internal Server Error - a panic was trapped while "+
		"resolving the request.  A stack trace was logged.")
}

func TestPanicHandler_NamesRequest(t *testing.T) {
	var got error
	func() {
		ctx := WithRequestID(context.Background(), "req-42")
		defer PanicHandler(ctx, func(err error) { got = err }, "")
		panic("resolver exploded")
	}()
	require.EqualError(t, got, "Internal Server Error - a panic was trapped while "+
		"resolving the request req-42.  A stack trace was logged under that request id.")
}

func TestPanicHandler_NoPanic(t *testing.T) {
	called := false
	func() {
		defer PanicHandler(context.Background(), func(err error) { called = true }, "")
	}()
	require.False(t, called)
}
