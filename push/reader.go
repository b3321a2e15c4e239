package push

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line. Network activity payloads are small,
// but the default 64KiB scanner limit is too tight for task-list pushes.
const maxLineSize = 1 << 20

// RawEvent is one dispatched text/event-stream event.
type RawEvent struct {
	Event string
	Data  string
	ID    string
	Retry time.Duration
}

// Reader splits a text/event-stream body into events.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	return &Reader{scanner: sc}
}

// Next blocks until a complete event is available. It returns io.EOF once the
// stream ends without a pending event.
func (r *Reader) Next() (RawEvent, error) {
	var (
		ev      RawEvent
		data    []string
		pending bool
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if pending {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		name, value := splitField(line)
		switch name {
		case "event":
			ev.Event = value
		case "data":
			data = append(data, value)
		case "id":
			ev.ID = value
		case "retry":
			ms, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			ev.Retry = time.Duration(ms) * time.Millisecond
		default:
			continue
		}
		pending = true
	}

	if err := r.scanner.Err(); err != nil {
		return RawEvent{}, err
	}
	if pending {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return RawEvent{}, io.EOF
}

func splitField(line string) (string, string) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return name, strings.TrimPrefix(value, " ")
}
