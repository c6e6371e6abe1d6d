//go:build linux

package buttons

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
)

func openLines(cfg Config, push func(Edge)) (io.Closer, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip, gpiocdev.WithConsumer("rotationctrl"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Chip, err)
	}
	closers := multiCloser{chip}

	for tool, offset := range cfg.Lines {
		tool := tool
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				push(Edge{Tool: tool, Pressed: evt.Type == gpiocdev.LineEventRisingEdge})
			}),
		}
		if cfg.Debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
		}
		if cfg.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			_ = closers.Close()
			return nil, fmt.Errorf("request line %d for %s: %w", offset, tool, err)
		}
		closers = append(closers, line)
	}
	return closers, nil
}
