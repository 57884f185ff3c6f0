package spinner

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpinnerWritesAndClears(t *testing.T) {
	var buf bytes.Buffer

	s := Start(&buf, "Discovering checks...")
	time.Sleep(250 * time.Millisecond)
	s.Stop()

	out := buf.String()
	assert.Contains(t, out, "Discovering checks...")
	// The final write clears the status line.
	assert.True(t, strings.HasSuffix(out, "\r\x1b[K"))
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer

	s := Start(&buf, "working")
	s.Stop()
	s.Stop()
}
