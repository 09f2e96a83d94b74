// Package progress reports transfer progress: a progress bar on a terminal,
// nothing otherwise.
package progress

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Reporter receives progress for one transfer.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
}

// CLIProgress draws a byte progress bar on w.
type CLIProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a progress bar reporter writing to w.
func NewCLIProgress(w io.Writer) *CLIProgress {
	return &CLIProgress{w: w}
}

// Start initializes the progress bar. A total of -1 (unknown size) shows a spinner.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// NoOpProgress discards progress.
type NoOpProgress struct{}

func (NoOpProgress) Start(total int64, description string) {}
func (NoOpProgress) Update(current int64)                  {}
func (NoOpProgress) Finish()                               {}

// Reader wraps an io.Reader and reports the running byte count.
type Reader struct {
	reader   io.Reader
	reporter Reporter
	current  int64
}

// NewReader creates a progress-reporting reader.
func NewReader(r io.Reader, reporter Reporter) *Reader {
	return &Reader{reader: r, reporter: reporter}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	pr.reporter.Update(pr.current)
	return n, err
}

// Count returns the bytes read so far.
func (pr *Reader) Count() int64 {
	return pr.current
}
