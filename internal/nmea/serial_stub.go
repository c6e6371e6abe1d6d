//go:build !linux

package nmea

import (
	"fmt"
	"os"
)

func openSerial(path string, baud int) (*os.File, error) {
	return nil, fmt.Errorf("nmea serial not supported on this platform")
}
