/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Logger writes structured audit records.  A nil *Logger is valid and drops
// everything, so callers don't need to check whether auditing is enabled.
type Logger struct {
	logger *zap.Logger
}

// InitLogger returns a Logger that appends JSON audit records to path.
func InitLogger(path string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableStacktrace = true

	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrapf(err, "while opening audit log %s", path)
	}
	return &Logger{logger: l}, nil
}

// AuditI logs msg at info level with args as alternating key/value pairs.
func (l *Logger) AuditI(msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Info(msg, fields(args)...)
}

// AuditE logs msg at error level with args as alternating key/value pairs.
func (l *Logger) AuditE(msg string, args ...interface{}) {
	if l == nil {
		return
	}
	l.logger.Error(msg, fields(args)...)
}

func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.logger.Sync()
}

func fields(args []interface{}) []zap.Field {
	flds := make([]zap.Field, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		flds = append(flds, zap.Any(key, args[i+1]))
	}
	return flds
}
