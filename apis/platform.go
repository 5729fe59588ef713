package apis

import "strings"

// isPiMachine reports whether a uname machine string is one of the ARM
// cores found on Raspberry Pi boards.
func isPiMachine(machine string) bool {
	return strings.HasPrefix(machine, "arm") || machine == "aarch64"
}
