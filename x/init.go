/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"fmt"
)

var (
	// These variables are set using -ldflags
	usergraphVersion string
	gitBranch        string
	lastCommitSHA    string
	lastCommitTime   string
)

// BuildDetails returns a string containing details about the usergraph binary.
func BuildDetails() string {
	return fmt.Sprintf(`
usergraph version : %v
Commit SHA-1      : %v
Commit timestamp  : %v
Branch            : %v

Licensed under the Apache Public License 2.0.

`,
		Version(), lastCommitSHA, lastCommitTime, gitBranch)
}

// PrintVersion prints version and other helpful information.
func PrintVersion() {
	fmt.Println(BuildDetails())
}

// Version returns the version the binary was built with, or "dev".
func Version() string {
	if usergraphVersion == "" {
		return "dev"
	}
	return usergraphVersion
}
