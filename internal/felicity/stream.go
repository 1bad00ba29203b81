package felicity

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxEventSize = 1 << 20

var errStreamEnded = errors.New("event stream ended without a result")

type streamEvent struct {
	name string
	data string
}

// readSearchStream consumes a text/event-stream body: progress events followed
// by one terminal result or error event.
func readSearchStream(body io.Reader, onProgress func(label string)) (*SearchResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var (
		current streamEvent
		data    []string
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) == 0 && current.name == "" {
				continue
			}
			current.data = strings.Join(data, "\n")
			resp, done, err := dispatchEvent(current, onProgress)
			if done || err != nil {
				return resp, err
			}
			current, data = streamEvent{}, data[:0]
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			current.name = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &TransportError{Op: "search", Err: fmt.Errorf("failed to read event stream: %w", err)}
	}

	// A final event may be terminated by EOF instead of a blank line.
	if len(data) > 0 {
		current.data = strings.Join(data, "\n")
		resp, done, err := dispatchEvent(current, onProgress)
		if done || err != nil {
			return resp, err
		}
	}
	return nil, &TransportError{Op: "search", Err: errStreamEnded}
}

func dispatchEvent(ev streamEvent, onProgress func(label string)) (*SearchResponse, bool, error) {
	switch ev.name {
	case "progress":
		var p progressEvent
		if err := json.Unmarshal([]byte(ev.data), &p); err != nil {
			// A bad progress label is not worth failing the search over.
			return nil, false, nil
		}
		if onProgress != nil && p.Label != "" {
			onProgress(p.Label)
		}
		return nil, false, nil
	// "message" and unnamed events are the SSE default type.
	case "result", "message", "":
		var resp SearchResponse
		if err := json.Unmarshal([]byte(ev.data), &resp); err != nil {
			return nil, true, &ServiceError{Op: "search", Message: fmt.Sprintf("undecodable result event: %v", err)}
		}
		return &resp, true, nil
	case "error":
		var e errorEvent
		if err := json.Unmarshal([]byte(ev.data), &e); err != nil || e.Message == "" {
			e.Message = strings.TrimSpace(ev.data)
		}
		return nil, true, &ServiceError{Op: "search", Message: e.Message}
	}
	return nil, false, nil
}
