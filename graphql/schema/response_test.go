/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package schema

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/usergraph/x"
)

func TestAddData_AddInitial(t *testing.T) {
	resp := &Response{}

	resp.AddData([]byte(`{"Some": "Data"}`))
	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data": {"Some": "Data"}}`, buf.String())
}

func TestAddData_AddNothing(t *testing.T) {
	resp := &Response{}

	resp.AddData([]byte(`{"Some": "Data"}`))
	resp.AddData([]byte{})
	resp.AddData([]byte(`{}`))
	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data": {"Some": "Data"}}`, buf.String())
}

func TestAddData_AddMore(t *testing.T) {
	resp := &Response{}

	resp.AddData([]byte(`{"Some": "Data"}`))
	resp.AddData([]byte(`{"And": "More"}`))
	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data": {"Some": "Data", "And": "More"}}`, buf.String())
}

func TestAddData_EmptyObject(t *testing.T) {
	resp := &Response{}

	resp.AddData([]byte(`{}`))
	resp.AddData([]byte(`{"Some": "Data"}`))
	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t, `{"data": {"Some": "Data"}}`, buf.String())
}

func TestWriteTo_ErrorsAndData(t *testing.T) {
	resp := &Response{Errors: x.GqlErrorList{x.GqlErrorf("An Error")}}
	resp.AddData([]byte(`{"Some": "Data"}`))

	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"errors":[{"message":"An Error"}], "data": {"Some": "Data"}}`, buf.String())
}

func TestWriteTo_ErrorsOnly(t *testing.T) {
	resp := ErrorResponse(x.GqlErrorf("An Error").WithLocations(x.Location{Line: 1, Column: 2}))
	resp.SetRequestID("abc")

	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"errors":[{"message":"An Error", "locations":[{"line":1,"column":2}]}],
		"extensions": {"requestID": "abc"}}`,
		buf.String())
}

func TestWriteTo_NilResponse(t *testing.T) {
	var resp *Response

	buf := new(bytes.Buffer)
	_, err := resp.WriteTo(buf)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"errors":[{"message":"Internal error - no response to write."}], "data":null}`,
		buf.String())
}

func TestWithError(t *testing.T) {
	resp := &Response{}
	resp.WithError(nil)
	require.Empty(t, resp.Errors)

	resp.WithError(x.GqlErrorList{x.GqlErrorf("one"), x.GqlErrorf("two")})
	resp.WithError(x.GqlErrorf("three"))
	require.Len(t, resp.Errors, 3)
	require.Equal(t, "three", resp.Errors[2].Message)
}
