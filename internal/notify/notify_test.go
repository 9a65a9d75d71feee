package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	r.Notify(Notice{Level: LevelSuccess, Message: "saved"})
	r.Notify(Notice{Level: LevelError, Message: "boom"})

	assert.Len(t, r.Notices(), 2)
	assert.Equal(t, []string{"boom"}, r.Errors())

	r.Reset()
	assert.Empty(t, r.Notices())
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLogger(zap.New(core))

	n.Notify(Notice{Level: LevelError, Message: "Patient not found"})
	n.Notify(Notice{Level: LevelSuccess, Message: "Lab record created"})

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "Patient not found", entries[0].Message)
		assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	}
}

func TestFunc(t *testing.T) {
	var got Notice
	Func(func(n Notice) { got = n }).Notify(Notice{Level: LevelInfo, Message: "hi"})
	assert.Equal(t, "hi", got.Message)
}
