package nfqdatapath

import (
	"fmt"
	"io"
	"sync"
)

// syncWriter serializes writes so that lines written by different workers
// never interleave.
type syncWriter struct {
	w io.Writer
	sync.Mutex
}

// NewDiagnosticWriter returns a writer safe for concurrent use by workers.
func NewDiagnosticWriter(w io.Writer) io.Writer {

	if w == nil {
		return io.Discard
	}

	if sw, ok := w.(*syncWriter); ok {
		return sw
	}

	return &syncWriter{w: w}
}

func (s *syncWriter) Write(p []byte) (int, error) {

	s.Lock()
	defer s.Unlock()

	return s.w.Write(p)
}

func writeBlocked(w io.Writer, ruleID string) error {

	_, err := fmt.Fprintf(w, "BLOCKED %s\n", ruleID)
	return err
}
