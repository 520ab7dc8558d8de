package logger

import (
	"bytes"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestFormatFields_SortedKeys(t *testing.T) {
	got := formatFields(Fields{"z": 1, "a": "x", "m": 2.5, "d": 3 * time.Second})
	assert.Equal(t, "{a=x, d=3s, m=2.50, z=1}", got)
	assert.Equal(t, "", formatFields(nil))
}

func TestLevels(t *testing.T) {
	buf := captureLog(t)

	Info("built", Fields{"voxels": 12})
	Warn("substituted", Fields{"material": "TNT"})
	Error("failed", errors.New("boom"), Fields{"actor": "alex"})

	out := buf.String()
	assert.Contains(t, out, "[INFO] built {voxels=12}")
	assert.Contains(t, out, "[WARN] substituted {material=TNT}")
	assert.Contains(t, out, "[ERROR] failed: boom {actor=alex}")
}

func TestDebug_Toggle(t *testing.T) {
	buf := captureLog(t)
	t.Cleanup(func() { SetDebug(false) })

	Debug("hidden", nil)
	assert.Empty(t, buf.String())

	SetDebug(true)
	Debug("shown", nil)
	assert.Contains(t, buf.String(), "[DEBUG] shown")
}
