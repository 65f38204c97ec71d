//go:build !linux

package button

import (
	"fmt"

	"netmoded/util"
)

// OpenGPIO is a stub; the GPIO character device is Linux-only.
func OpenGPIO(log *util.Logger, chip string, lines []int) (EdgeSource, error) {
	return nil, fmt.Errorf("gpio buttons are only supported on linux")
}
