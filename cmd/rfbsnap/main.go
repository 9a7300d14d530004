// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: Ryan Johnson

// Command rfbsnap connects to an RFB server, waits for the first complete
// framebuffer update and writes it out as a PNG image. Connection settings
// come from flags or from a named profile in a YAML config file.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
