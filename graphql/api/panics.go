/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package api

import (
	"context"
	"runtime/debug"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const errPanicTrapped = "Internal Server Error - a panic was trapped while resolving the request"

// PanicHandler is deferred around the execution of a request, or a part of one.
// A recovered panic is logged with its stack under the request id carried by
// ctx, and fn is called with an error that names the same request id, so a
// client's report can be matched to the log.
func PanicHandler(ctx context.Context, fn func(error), query string) {
	p := recover()
	if p == nil {
		return
	}

	reqID := RequestID(ctx)
	glog.Errorf("[%s] panic: %v\n query: %s\n trace: %s", reqID, p, query, debug.Stack())

	if reqID == "" {
		fn(errors.New(errPanicTrapped + ".  A stack trace was logged."))
		return
	}
	fn(errors.Errorf("%s %s.  A stack trace was logged under that request id.",
		errPanicTrapped, reqID))
}
