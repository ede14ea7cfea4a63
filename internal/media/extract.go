package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// TimeRange is a half-open span of seconds within a clip.
type TimeRange struct {
	StartSec float64
	EndSec   float64
}

// Duration returns the span length in seconds.
func (tr TimeRange) Duration() float64 {
	return tr.EndSec - tr.StartSec
}

// ComputeTimeRanges converts detected group indices into margin-padded time
// ranges, merging overlapping or adjacent ranges. Each group index spans
// [idx*exposureSec, (idx+1)*exposureSec] within the clip.
func ComputeTimeRanges(groups []int, exposureSec, marginSec, durationSec float64) []TimeRange {
	if len(groups) == 0 {
		return nil
	}

	sorted := append([]int(nil), groups...)
	sort.Ints(sorted)

	var raw []TimeRange
	for _, idx := range sorted {
		start := float64(idx)*exposureSec - marginSec
		if start < 0 {
			start = 0
		}
		end := float64(idx+1)*exposureSec + marginSec
		if durationSec > 0 && end > durationSec {
			end = durationSec
		}
		raw = append(raw, TimeRange{StartSec: start, EndSec: end})
	}

	merged := []TimeRange{raw[0]}
	for _, r := range raw[1:] {
		last := &merged[len(merged)-1]
		if r.StartSec <= last.EndSec {
			if r.EndSec > last.EndSec {
				last.EndSec = r.EndSec
			}
		} else {
			merged = append(merged, r)
		}
	}
	return merged
}

// ExtractSegments cuts a stream-copied, audio-stripped subclip for each
// time range. Output files are named <stem>_meteor.mp4, or suffixed with an
// index when there is more than one range.
func ExtractSegments(ctx context.Context, sourcePath string, ranges []TimeRange, outputDir string) ([]string, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, extractError(sourcePath, fmt.Errorf("creating output directory: %w", err), "")
	}

	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	var outputs []string

	for i, tr := range ranges {
		name := stem + "_meteor.mp4"
		if len(ranges) > 1 {
			name = fmt.Sprintf("%s_meteor_%d.mp4", stem, i)
		}
		outPath := filepath.Join(outputDir, name)

		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-hide_banner", "-nostdin", "-y",
			"-loglevel", "error",
			"-ss", fmt.Sprintf("%.3f", tr.StartSec),
			"-i", sourcePath,
			"-t", fmt.Sprintf("%.3f", tr.Duration()),
			"-c", "copy",
			"-an",
			outPath,
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			return nil, extractError(sourcePath, fmt.Errorf("ffmpeg extraction failed: %w", err), stderr.String())
		}
		outputs = append(outputs, outPath)
	}
	return outputs, nil
}

func extractError(path string, err error, diagnostic string) error {
	eb := errors.New(err).
		Component("media").
		Category(errors.CategoryCommandExec).
		Context("clip_path", path)
	if diagnostic != "" {
		eb = eb.Context("ffmpeg_output", strings.TrimSpace(diagnostic))
	}
	return eb.Build()
}
