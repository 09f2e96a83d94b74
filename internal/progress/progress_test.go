package progress

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type recorder struct {
	updates []int64
}

func (r *recorder) Start(total int64, description string) {}
func (r *recorder) Update(current int64)                  { r.updates = append(r.updates, current) }
func (r *recorder) Finish()                               {}

func TestReaderReportsRunningTotal(t *testing.T) {
	rec := &recorder{}
	r := NewReader(strings.NewReader(strings.Repeat("x", 10)), rec)

	buf := make([]byte, 4)
	for {
		if _, err := r.Read(buf); err == io.EOF {
			break
		}
	}

	if r.Count() != 10 {
		t.Errorf("Count() = %d, want 10", r.Count())
	}
	if got := rec.updates[len(rec.updates)-1]; got != 10 {
		t.Errorf("last update = %d, want 10", got)
	}
}

func TestCLIProgressWritesToWriter(t *testing.T) {
	var out bytes.Buffer
	p := NewCLIProgress(&out)
	p.Start(100, "results.zip")
	p.Update(100)
	p.Finish()

	if !strings.Contains(out.String(), "results.zip") {
		t.Errorf("expected description in output, got %q", out.String())
	}
}

func TestCLIProgressBeforeStart(t *testing.T) {
	p := NewCLIProgress(io.Discard)
	p.Update(5)
	p.Finish()
}
