package llm

import (
	"io"
	"strings"
)

// LineReader splits a byte stream into newline-delimited lines for
// line-delimited JSON transports. Blank lines are discarded, and the final
// partial buffer (no trailing newline) is still flushed as a last line when
// the stream closes.
type LineReader struct {
	r   io.Reader
	buf strings.Builder
	// pending holds decoded-but-unreturned lines from the last read.
	pending []string
	done    bool
	err     error
}

// NewLineReader wraps r in a LineReader.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r}
}

// Next returns the next non-blank line. It returns io.EOF once the stream is
// exhausted and the final partial line (if any) has been flushed.
func (lr *LineReader) Next() (string, error) {
	for {
		if len(lr.pending) > 0 {
			line := lr.pending[0]
			lr.pending = lr.pending[1:]
			if strings.TrimSpace(line) == "" {
				continue
			}
			return line, nil
		}
		if lr.done {
			return "", lr.err
		}

		chunk := make([]byte, 4096)
		n, err := lr.r.Read(chunk)
		if n > 0 {
			lr.buf.Write(chunk[:n])
			lr.splitBuffer()
		}
		if err != nil {
			lr.done = true
			lr.err = err
			// Flush whatever is left in the buffer as the last line.
			if rest := lr.buf.String(); rest != "" {
				lr.buf.Reset()
				lr.pending = append(lr.pending, rest)
			}
		}
	}
}

// splitBuffer moves every complete line out of the accumulation buffer into
// pending, keeping any trailing partial line buffered.
func (lr *LineReader) splitBuffer() {
	s := lr.buf.String()
	idx := strings.LastIndexByte(s, '\n')
	if idx < 0 {
		return
	}
	complete, rest := s[:idx], s[idx+1:]
	lr.buf.Reset()
	lr.buf.WriteString(rest)
	lr.pending = append(lr.pending, strings.Split(complete, "\n")...)
}
