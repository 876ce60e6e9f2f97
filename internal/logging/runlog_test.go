package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestRunLog_CapturesLoggerOutput(t *testing.T) {
	runLog := NewRunLog()
	logger := NewLogger(LevelInfo, FormatText)
	logger.SetOutput(runLog)

	logger.Info("pipeline start")
	logger.WithField("step", "fetch").Info("fetched records")

	captured := string(runLog.Bytes())
	if !strings.Contains(captured, "pipeline start") {
		t.Errorf("run log missing first message: %q", captured)
	}
	if !strings.Contains(captured, "fetched records") {
		t.Errorf("run log missing second message: %q", captured)
	}
}

func TestRunLog_TeeKeepsBothDestinations(t *testing.T) {
	runLog := NewRunLog()
	var direct strings.Builder

	logger := NewLogger(LevelInfo, FormatText)
	logger.SetOutput(io.MultiWriter(&direct, runLog))

	logger.Info("visible in both")

	if !strings.Contains(direct.String(), "visible in both") {
		t.Error("primary destination missed the message")
	}
	if !strings.Contains(string(runLog.Bytes()), "visible in both") {
		t.Error("run log missed the message")
	}
}

func TestRunLog_WriteFile(t *testing.T) {
	runLog := NewRunLog()
	if _, err := runLog.Write([]byte("line one\nline two\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "run.log")
	if err := runLog.WriteFile(path); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading written log: %v", err)
	}
	if string(content) != "line one\nline two\n" {
		t.Errorf("file content = %q, want the buffered log", content)
	}
}

func TestRunLog_ConcurrentWrites(t *testing.T) {
	runLog := NewRunLog()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = runLog.Write([]byte("x\n"))
			}
		}()
	}
	wg.Wait()

	if runLog.Len() != 10*100*2 {
		t.Errorf("Len() = %d, want %d", runLog.Len(), 10*100*2)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	runLog := NewRunLog()
	logger := NewLogger(LevelWarn, FormatText)
	logger.SetOutput(runLog)

	logger.Debug("too quiet")
	logger.Info("still too quiet")
	logger.Warn("loud enough")

	captured := string(runLog.Bytes())
	if strings.Contains(captured, "too quiet") {
		t.Errorf("below-level messages leaked: %q", captured)
	}
	if !strings.Contains(captured, "loud enough") {
		t.Errorf("warn message missing: %q", captured)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{in: "debug", want: LevelDebug},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "bogus", want: LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
