package sse

import (
	"bytes"
	"fmt"
	"io"
)

// Event names used by the GraphQL over SSE protocol in distinct connections mode.
const (
	EventNext     = "next"
	EventComplete = "complete"
)

// writeEvent writes one SSE event. Multi-line payloads are split across
// data lines so the client reassembles them verbatim.
func writeEvent(w io.Writer, event string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if len(data) == 0 {
		_, err := io.WriteString(w, "data:\n\n")
		return err
	}
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// writeComment writes an SSE comment line, which clients ignore. Used for heartbeats.
func writeComment(w io.Writer, text string) error {
	_, err := fmt.Fprintf(w, ": %s\n\n", text)
	return err
}
