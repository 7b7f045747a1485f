/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"github.com/golang/glog"
)

// ToGlog routes badger's log output to glog.
type ToGlog struct{}

func (rl *ToGlog) Debugf(f string, v ...interface{}) {
	glog.V(3).Infof(f, v...)
}

func (rl *ToGlog) Infof(f string, v ...interface{}) {
	glog.V(1).Infof(f, v...)
}

func (rl *ToGlog) Warningf(f string, v ...interface{}) {
	glog.Warningf(f, v...)
}

func (rl *ToGlog) Errorf(f string, v ...interface{}) {
	glog.Errorf(f, v...)
}
