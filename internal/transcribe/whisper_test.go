package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipframe/clipframe/internal/apperr"
	"github.com/clipframe/clipframe/internal/captions"
	"github.com/clipframe/clipframe/internal/logging"
	"github.com/clipframe/clipframe/internal/media"
)

const sampleJSON = `{
  "result": {"language": "he"},
  "transcription": [
    {"timestamps": {"from": "00:00:00,000", "to": "00:00:01,500"}, "offsets": {"from": 0, "to": 1500}, "text": " Hello"},
    {"timestamps": {"from": "00:00:01,500", "to": "00:00:01,500"}, "offsets": {"from": 1500, "to": 1500}, "text": "   "},
    {"timestamps": {"from": "00:00:01,500", "to": "00:00:03,250"}, "offsets": {"from": 1500, "to": 3250}, "text": " world "}
  ]
}`

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, _, wav string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(wav, []byte("RIFF"), 0o644)
}

// fakeWhisper writes canned JSON to the -of prefix it is given.
type fakeWhisper struct {
	mu     sync.Mutex
	args   [][]string
	output string
	result media.RunResult
}

func (f *fakeWhisper) Run(_ context.Context, inv media.Invocation) media.RunResult {
	f.mu.Lock()
	f.args = append(f.args, inv.Args)
	f.mu.Unlock()
	if f.output != "" {
		i := slices.Index(inv.Args, "-of")
		os.WriteFile(inv.Args[i+1]+".json", []byte(f.output), 0o644)
	}
	return f.result
}

func fakeInstall(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "whisper-cli")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755))
	model := filepath.Join(dir, "ggml-base.bin")
	require.NoError(t, os.WriteFile(model, []byte("ggml"), 0o644))
	return Config{Binary: bin, Model: model, Threads: 4, ScratchDir: t.TempDir()}
}

func TestEngine_Transcribe(t *testing.T) {
	cfg := fakeInstall(t)
	runner := &fakeWhisper{output: sampleJSON}
	eng := New(cfg, &fakeExtractor{}, runner, logging.Discard())

	segs, err := eng.Transcribe(context.Background(), "/data/uploads/a.mp4", "he")
	require.NoError(t, err)
	assert.Equal(t, []captions.Segment{
		{Start: 0, End: 1.5, Text: "Hello"},
		{Start: 1.5, End: 3.25, Text: "world"},
	}, segs)

	args := runner.args[0]
	assert.Contains(t, args, "-oj")
	assert.Equal(t, "he", args[slices.Index(args, "-l")+1])
	assert.Equal(t, "4", args[slices.Index(args, "-t")+1])

	// Scratch dirs are removed after every call.
	entries, err := os.ReadDir(cfg.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEngine_AutoLanguage(t *testing.T) {
	runner := &fakeWhisper{output: sampleJSON}
	eng := New(fakeInstall(t), &fakeExtractor{}, runner, logging.Discard())

	_, err := eng.Transcribe(context.Background(), "a.mp4", "")
	require.NoError(t, err)
	args := runner.args[0]
	assert.Equal(t, "auto", args[slices.Index(args, "-l")+1])
}

func TestEngine_LoadFailureIsCached(t *testing.T) {
	cfg := fakeInstall(t)
	cfg.Model = filepath.Join(t.TempDir(), "missing.bin")
	ext := &fakeExtractor{}
	eng := New(cfg, ext, &fakeWhisper{}, logging.Discard())

	for i := 0; i < 3; i++ {
		_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
		assert.True(t, apperr.IsKind(err, apperr.KindTranscription))
	}
	// The model appearing later does not matter; the load result is cached.
	require.NoError(t, os.WriteFile(cfg.Model, []byte("ggml"), 0o644))
	_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
	assert.Error(t, err)
	assert.Zero(t, ext.calls)
}

func TestEngine_Failures(t *testing.T) {
	t.Run("extract", func(t *testing.T) {
		eng := New(fakeInstall(t), &fakeExtractor{err: errors.New("no audio stream")}, &fakeWhisper{}, logging.Discard())
		_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
		assert.True(t, apperr.IsKind(err, apperr.KindTranscription))
		assert.True(t, apperr.IsRetryable(err))
	})
	t.Run("whisper exit", func(t *testing.T) {
		runner := &fakeWhisper{result: media.RunResult{ExitCode: 1, StderrTail: "failed to load model"}}
		eng := New(fakeInstall(t), &fakeExtractor{}, runner, logging.Discard())
		_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
		assert.True(t, apperr.IsKind(err, apperr.KindTranscription))
		assert.Contains(t, err.Error(), "failed to load model")
	})
	t.Run("bad json", func(t *testing.T) {
		eng := New(fakeInstall(t), &fakeExtractor{}, &fakeWhisper{output: "{"}, logging.Discard())
		_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
		assert.True(t, apperr.IsKind(err, apperr.KindTranscription))
	})
	t.Run("no output file", func(t *testing.T) {
		eng := New(fakeInstall(t), &fakeExtractor{}, &fakeWhisper{}, logging.Discard())
		_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
		assert.True(t, apperr.IsKind(err, apperr.KindTranscription))
	})
}

func TestEngine_ConcurrentUse(t *testing.T) {
	eng := New(fakeInstall(t), &fakeExtractor{}, &fakeWhisper{output: sampleJSON}, logging.Discard())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.Transcribe(context.Background(), "a.mp4", "en")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
