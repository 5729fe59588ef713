//go:build !linux

package apis

func IsRaspberryPi() bool {
	return false
}
