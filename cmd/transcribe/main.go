// Command transcribe prints a speaker-labelled transcript of an audio file
// using the configured speech-to-text provider.
//
// Usage:
//
//	transcribe -file interview.mp3 [-config config.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/app"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/config"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/transcript"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "", "optional YAML configuration file")
	file := fset.String("file", "", "audio file to transcribe")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(stderr, "transcribe: -file is required")
		return 2
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "transcribe: load .env: %v\n", err)
		return 1
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "transcribe: %v\n", err)
		return 1
	}

	reg := config.NewRegistry()
	app.RegisterBuiltinProviders(reg)
	provider, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		fmt.Fprintf(stderr, "transcribe: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return transcribeFile(ctx, provider, *file, stdout, stderr)
}

// transcribeFile reads path and writes its transcript to stdout. Provider
// failures print the fallback message instead of a transcript.
func transcribeFile(ctx context.Context, provider stt.Provider, path string, stdout, stderr io.Writer) int {
	audio, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "transcribe: %v\n", err)
		return 1
	}

	svc := transcript.NewService(provider)
	tr, err := svc.Transcribe(ctx, audio, mimeType(path))
	if err != nil {
		slog.Warn("transcription failed", "file", path, "err", err)
		fmt.Fprintln(stdout, transcript.NoTranscriptionMessage)
		return 1
	}
	fmt.Fprintln(stdout, tr.String())
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadFromReader(strings.NewReader(""))
	}
	return config.Load(path)
}

// mimeType guesses the audio content type from the file extension. An empty
// result lets the provider sniff the format.
func mimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "audio/webm"
	case ".ogg", ".opus":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}
