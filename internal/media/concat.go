package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// Concatenate joins clips into a single playable video without re-encoding.
// A single input is copied byte for byte; multiple inputs go through
// ffmpeg's concat demuxer with stream copy. Output ordering follows the
// input ordering.
func Concatenate(ctx context.Context, videoPaths []string, outputPath string) error {
	if len(videoPaths) == 0 {
		return concatError(errors.NewStd("no videos to concatenate"), "")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return concatError(fmt.Errorf("creating output directory: %w", err), "")
	}

	if len(videoPaths) == 1 {
		if err := copyFile(videoPaths[0], outputPath); err != nil {
			return concatError(err, "")
		}
		slog.Info("Single video copied", "output", outputPath)
		return nil
	}

	listPath := strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_concat.txt"
	var list strings.Builder
	for _, p := range videoPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&list, "file '%s'\n", abs)
	}
	if err := os.WriteFile(listPath, []byte(list.String()), 0o644); err != nil {
		return concatError(fmt.Errorf("writing concat list: %w", err), "")
	}
	defer os.Remove(listPath) //nolint:errcheck // best-effort cleanup

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-nostdin", "-y",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return concatError(fmt.Errorf("ffmpeg concat failed: %w", err), stderr.String())
	}

	slog.Info("Concatenated videos", "count", len(videoPaths), "output", outputPath)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only file

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func concatError(err error, diagnostic string) error {
	eb := errors.New(err).
		Component("media").
		Category(errors.CategoryConcatenation)
	if diagnostic != "" {
		eb = eb.Context("ffmpeg_output", strings.TrimSpace(diagnostic))
	}
	return eb.Build()
}
