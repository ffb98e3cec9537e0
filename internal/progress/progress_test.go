package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsConcurrentTicks(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWriterTracker("fuzz_one -O2-standard", 64, &buf)

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Tick()
		}()
	}
	wg.Wait()
	assert.Equal(t, 64, tr.Done())
	tr.FinishSuccess()
}

func TestFinishMessages(t *testing.T) {
	var buf bytes.Buffer
	tr := NewWriterTracker("fuzz_one", 1, &buf)
	tr.Describe("fuzz_two")
	tr.FinishSkipped("no builds")
	assert.Contains(t, buf.String(), "fuzz_two skipped (no builds)")

	buf.Reset()
	tr = newSpinner("fuzz_one", &buf)
	tr.FinishError(errors.New("lldb crashed"))
	assert.Contains(t, buf.String(), "fuzz_one error: lldb crashed")
}
