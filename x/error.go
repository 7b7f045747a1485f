/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

// This file contains some functions for error handling. They are meant for
// startup paths where the process can't continue; request paths return errors.
// Some common use cases are:
// (1) You receive an error from external lib, and would like to check/log fatal.
//     For this, use x.Check or x.Check2.
// (2) You receive an error from external lib, and would like to pass on with some
//     stack trace information. In this case, use errors.Wrap or errors.Wrapf.

import (
	"log"

	"github.com/pkg/errors"
)

// Check logs fatal if err != nil.
func Check(err error) {
	if err != nil {
		err = errors.Wrap(err, "")
		log.Fatalf("%+v", err)
	}
}

// Check2 acts as convenience wrapper to Check, using the 2nd argument as error.
func Check2(_ interface{}, err error) {
	Check(err)
}
