//go:build !linux

package buttons

import (
	"fmt"
	"io"
)

func openLines(cfg Config, push func(Edge)) (io.Closer, error) {
	return nil, fmt.Errorf("gpio unsupported on this platform")
}
