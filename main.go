// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/cartobase/addrharvest/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
