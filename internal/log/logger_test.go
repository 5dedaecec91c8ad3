package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternFormatter(t *testing.T) {
	f := &formatter{pattern: DefaultPattern, time: "15:04:05"}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 1, 12, 30, 45, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "capture started",
		Data:    logrus.Fields{"generation": "g1", "component": "controller"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "12:30:45 [INFO] [component=controller,generation=g1] capture started\n", string(out))
}

func TestPatternFormatterNoFields(t *testing.T) {
	f := &formatter{pattern: "%level %msg %caller", time: time.RFC3339}
	entry := &logrus.Entry{Level: logrus.WarnLevel, Message: "hello", Data: logrus.Fields{}}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "WARNING hello -\n", string(out))
}

func TestNewFormatters(t *testing.T) {
	for _, format := range []string{"", "pattern", "json", "nested", "prefixed", "JSON"} {
		t.Run(format, func(t *testing.T) {
			f, err := newFormatter(&LoggerConfig{Format: format})
			require.NoError(t, err)
			assert.NotNil(t, f)
		})
	}

	_, err := newFormatter(&LoggerConfig{Format: "xml"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}

func TestNewWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "pktlive.log")

	l, err := New(&LoggerConfig{
		Level:  "debug",
		Format: "json",
		Outputs: OutputsConfig{File: FileAppenderOpt{
			Enabled:  true,
			Filename: logPath,
			MaxSize:  1,
		}},
	})
	require.NoError(t, err)
	assert.True(t, l.IsDebugEnabled())

	l.WithField("component", "test").Info("written to file")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestNewFileOutputRequiresFilename(t *testing.T) {
	_, err := New(&LoggerConfig{Outputs: OutputsConfig{File: FileAppenderOpt{Enabled: true}}})
	assert.Error(t, err)
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(&LoggerConfig{Level: "loud"})
	require.NoError(t, err)
	assert.True(t, l.IsInfoEnabled())
	assert.False(t, l.IsDebugEnabled())
}

func TestWrapCapturesOutput(t *testing.T) {
	var buf bytes.Buffer
	base := logrus.New()
	base.SetOutput(&buf)
	base.SetFormatter(&formatter{pattern: "%level %field %msg", time: time.RFC3339})

	Wrap(base).WithField("client", "c1").Warnf("dropped %d events", 3)

	assert.Equal(t, "WARNING [client=c1] dropped 3 events\n", buf.String())
}

func TestMultiWriterKeepsWritingOnError(t *testing.T) {
	var a, b bytes.Buffer
	mw := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)

	n, err := mw.Write([]byte("x"))
	assert.Equal(t, 1, n)
	assert.Error(t, err)
	assert.Equal(t, "x", a.String())
	assert.Equal(t, "x", b.String())
	assert.Equal(t, 3, mw.Len())
}

func TestMultiWriterCloseSkipsStdout(t *testing.T) {
	c := &closingWriter{}
	mw := NewMultiWriter(os.Stdout, c)

	require.NoError(t, mw.Close())
	assert.True(t, c.closed)
	assert.Equal(t, 2, mw.Len())
}

func TestMultiWriterCountsFailures(t *testing.T) {
	mw := NewMultiWriter(failingWriter{}, &bytes.Buffer{})
	_, _ = mw.Write([]byte("a"))
	_, _ = mw.Write([]byte("b"))
	assert.EqualValues(t, 2, mw.Failures())
}

func TestFileAppenderCreatesDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "pktlive.log")
	mw := NewMultiWriter()

	require.NoError(t, mw.AddFileAppender(FileAppenderOpt{Enabled: true, Filename: logPath}))
	_, err := mw.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "line\n", string(data))
}

func TestReconfigureReleasesPreviousFile(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	})

	logPath := filepath.Join(t.TempDir(), "pktlive.log")
	require.NoError(t, Reconfigure(&LoggerConfig{
		Level:   "info",
		Format:  "pattern",
		Outputs: OutputsConfig{File: FileAppenderOpt{Enabled: true, Filename: logPath}},
	}))
	withFile := GetLogger()
	withFile.Info("before reload")

	require.NoError(t, Reconfigure(&LoggerConfig{Level: "info", Format: "pattern"}))
	assert.NotNil(t, outputOf(withFile))

	// A logger captured before the reload still reaches the file.
	withFile.Info("after reload")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before reload")
	assert.Contains(t, string(data), "after reload")
}

func TestGetLoggerBeforeInit(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, Component("controller"))
}

type closingWriter struct {
	bytes.Buffer
	closed bool
}

func (c *closingWriter) Close() error {
	c.closed = true
	return nil
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, os.ErrClosed
}

func TestReconfigureReplacesGlobal(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() {
		mu.Lock()
		logger = prev
		mu.Unlock()
	})

	require.NoError(t, Reconfigure(&LoggerConfig{Level: "warn", Format: "json"}))
	assert.False(t, GetLogger().IsInfoEnabled())

	require.NoError(t, Reconfigure(&LoggerConfig{Level: "debug", Format: "pattern"}))
	assert.True(t, GetLogger().IsDebugEnabled())
}
