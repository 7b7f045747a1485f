/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuditLogWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := InitLogger(path)
	require.NoError(t, err)

	l.AuditI("createUser", "id", "3", "name", "Carol")
	l.AuditE("deleteUser", "id", "9", "dangling")
	l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "createUser", rec["msg"])
	require.Equal(t, "info", rec["level"])
	require.Equal(t, "3", rec["id"])
	require.Equal(t, "Carol", rec["name"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	require.Equal(t, "error", rec["level"])
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	l.AuditI("createUser", "id", "1")
	l.AuditE("createUser", "id", "1")
	l.Sync()
}
