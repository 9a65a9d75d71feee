package logger

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, TimeFormat: time.RFC3339, Output: &buf, JSON: true})

	l.Info("lab record created", "id", "abc")
	l.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, `"message":"lab record created"`)
	assert.Contains(t, out, `"id":"abc"`)
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("loud"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
	ctx := l.WithContext(context.Background())

	FromContext(ctx).Info("from ctx")
	assert.Contains(t, buf.String(), "from ctx")

	// a bare context yields a disabled logger rather than nil
	FromContext(context.Background()).Info("dropped")
}
