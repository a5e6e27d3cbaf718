// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/homeops/dasboot/cmd/dasboot"

func main() {
	cmd.Execute()
}
