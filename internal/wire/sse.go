package wire

import (
	"bufio"
	"io"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	Event string
	Data  string
}

// SSEDecoder yields blank-line terminated events from a byte stream. Reads may
// split lines anywhere; an event is only yielded once its terminating blank line
// has arrived.
type SSEDecoder struct {
	r     *bufio.Reader
	event string
	data  []string
}

func NewSSEDecoder(r io.Reader) *SSEDecoder {
	return &SSEDecoder{r: bufio.NewReader(r)}
}

// Next returns the next event with at least one data line. It returns io.EOF when
// the stream ends; an unterminated trailing event is dropped.
func (d *SSEDecoder) Next() (Event, error) {
	for {
		line, err := d.r.ReadString('\n')
		if err != nil {
			d.reset()
			return Event{}, err
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if len(d.data) == 0 {
				d.reset()
				continue
			}
			ev := Event{Event: d.event, Data: strings.Join(d.data, "\n")}
			d.reset()
			return ev, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			d.data = append(d.data, value)
		case "event":
			d.event = value
		}
	}
}

func (d *SSEDecoder) reset() {
	d.event = ""
	d.data = d.data[:0]
}
