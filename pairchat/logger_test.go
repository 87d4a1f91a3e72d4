package pairchat

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLogger(zerolog.New(&buf))

	l.Warn("poll failed", map[string]any{"room": "r1", "failures": 3})

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"message":"poll failed"`)
	assert.Contains(t, out, `"room":"r1"`)
	assert.Contains(t, out, `"failures":3`)
}
