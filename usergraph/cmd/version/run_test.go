/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/usergraph/x"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	Version.Cmd.SetOut(&out)
	Version.Cmd.Run(Version.Cmd, nil)

	require.Contains(t, out.String(), "usergraph version : "+x.Version())
}
