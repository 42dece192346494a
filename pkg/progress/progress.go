// Package progress reports the progress of long-running reads, writes and loops on a single terminal line.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultFlushInterval is a reasonable default flush interval
const DefaultFlushInterval = time.Second / 30

// Rewritable is a single line of output that is rewritten in place.
// A Rewritable with a nil Writer discards all output.
type Rewritable struct {
	Writer io.Writer

	FlushInterval  time.Duration // minimum time between flushes
	lastFlush      time.Time
	longestContent int
	content        string
}

// Write replaces the content of the line, flushing it if FlushInterval has passed.
func (rw *Rewritable) Write(value string) {
	rw.content = value
	rw.Flush(false)
}

// Flush writes the current content to the underlying writer.
func (rw *Rewritable) Flush(force bool) {
	if rw.Writer == nil {
		return
	}
	if !(force || time.Since(rw.lastFlush) > rw.FlushInterval) {
		return
	}

	if len(rw.content) >= rw.longestContent {
		rw.longestContent = len(rw.content)
	}

	// blank out leftovers of longer content
	blank := strings.Repeat(" ", rw.longestContent-len(rw.content))
	fmt.Fprintf(rw.Writer, "\r%s%s", rw.content, blank)

	rw.lastFlush = time.Now()
}

// Close clears the line.
func (rw *Rewritable) Close() {
	if rw.Writer == nil {
		return
	}
	rw.content = ""
	rw.Flush(true)
	rw.Writer.Write([]byte("\r"))
}

// Reader reports the number of bytes read.
type Reader struct {
	io.Reader
	Bytes int64

	Rewritable
}

func (cr *Reader) Read(bytes []byte) (int, error) {
	count, err := cr.Reader.Read(bytes)
	cr.Bytes += int64(count)
	cr.Rewritable.Write("Read " + humanize.Bytes(uint64(cr.Bytes)))
	return count, err
}

// Writer reports the number of bytes written.
type Writer struct {
	io.Writer
	Bytes int64

	Rewritable
}

func (cw *Writer) Write(bytes []byte) (int, error) {
	cw.Bytes += int64(len(bytes))
	cw.Rewritable.Write("Wrote " + humanize.Bytes(uint64(cw.Bytes)))
	return cw.Writer.Write(bytes)
}

// Counter reports the number of items processed.
type Counter struct {
	Rewritable
}

// Set reports that count out of total items of unit have been processed.
// A total of zero or less means the total is unknown.
func (c *Counter) Set(unit string, count, total int) {
	if total <= 0 || count >= total {
		c.Rewritable.Write(fmt.Sprintf("%s %s", humanize.Comma(int64(count)), unit))
		return
	}

	totalS := humanize.Comma(int64(total))
	countS := humanize.Comma(int64(count))
	if len(countS) < len(totalS) {
		countS = strings.Repeat(" ", len(totalS)-len(countS)) + countS
	}
	c.Rewritable.Write(fmt.Sprintf("%s/%s %s", countS, totalS, unit))
}
