package apis

import (
	"log"

	"golang.org/x/sys/unix"
)

// IsRaspberryPi reports whether this host looks like a Pi, which is where
// the local GPIO controls are wired.
func IsRaspberryPi() bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		log.Printf("uname failed: %v\n", err)
		return false
	}
	return isPiMachine(unix.ByteSliceToString(uts.Machine[:]))
}
