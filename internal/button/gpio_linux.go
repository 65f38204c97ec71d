//go:build linux

package button

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"netmoded/util"
)

// GPIOSource reads edges from the kernel GPIO character device.  The
// buttons ground their line when pressed, so lines are requested with
// pull-ups and a falling voltage edge maps to Down.
type GPIOSource struct {
	log    *util.Logger
	req    *gpiocdev.Lines
	events chan Edge
}

// OpenGPIO requests lines on chip with pull-ups and both-edge
// reporting.
func OpenGPIO(log *util.Logger, chip string, lines []int) (EdgeSource, error) {
	s := &GPIOSource{
		log:    log,
		events: make(chan Edge, 32),
	}
	req, err := gpiocdev.RequestLines(chip, lines,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithConsumer("netmoded"),
		gpiocdev.WithEventHandler(s.relay),
	)
	if err != nil {
		return nil, fmt.Errorf("request lines %v on %s: %w", lines, chip, err)
	}
	s.req = req
	return s, nil
}

// relay runs on the library's event goroutine and must not block.
func (s *GPIOSource) relay(ev gpiocdev.LineEvent) {
	e := Edge{
		Line: ev.Offset,
		Down: ev.Type == gpiocdev.LineEventFallingEdge,
		At:   time.Now(),
	}
	select {
	case s.events <- e:
	default:
		s.log.Warn("edge buffer full, dropped an event on line %d", ev.Offset)
	}
}

func (s *GPIOSource) Events() <-chan Edge { return s.events }

// Close releases the lines.  The events channel stays open; the
// interpreter stops through its own context.
func (s *GPIOSource) Close() error {
	return s.req.Close()
}
