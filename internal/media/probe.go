// Package media wraps the external ffmpeg/ffprobe binaries for clip
// probing, grayscale frame extraction, stream-copy segment extraction and
// concatenation. All invocations honor the caller's context.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// ClipInfo describes the first video stream of a clip.
type ClipInfo struct {
	Width       int
	Height      int
	FPS         float64
	DurationSec float64
}

// ffprobe JSON payload, only the fields we consume.
type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// defaultFPS is assumed when the container reports no usable frame rate.
const defaultFPS = 15.0

// Probe inspects a clip with ffprobe and returns its video parameters.
func Probe(ctx context.Context, path string) (ClipInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_streams",
		"-show_format",
		"-of", "json",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return ClipInfo{}, errors.New(fmt.Errorf("ffprobe failed for %s: %w: %s", path, err, stderr.String())).
			Component("media").
			Category(errors.CategoryDetection).
			Context("clip_path", path).
			Build()
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return ClipInfo{}, errors.New(fmt.Errorf("parsing ffprobe output for %s: %w", path, err)).
			Component("media").
			Category(errors.CategoryDetection).
			Context("clip_path", path).
			Build()
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		info := ClipInfo{Width: s.Width, Height: s.Height}
		info.FPS = parseRate(s.AvgFrameRate)
		if info.FPS <= 0 {
			info.FPS = parseRate(s.RFrameRate)
		}
		if info.FPS <= 0 {
			info.FPS = defaultFPS
		}
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.DurationSec = d
		}
		if info.Width <= 0 || info.Height <= 0 {
			return ClipInfo{}, errors.Newf("no frame dimensions in %s", path).
				Component("media").
				Category(errors.CategoryDetection).
				Context("clip_path", path).
				Build()
		}
		return info, nil
	}

	return ClipInfo{}, errors.Newf("no video stream in %s", path).
		Component("media").
		Category(errors.CategoryDetection).
		Context("clip_path", path).
		Build()
}

// parseRate parses an ffprobe rational like "30000/1001" or "15/1".
func parseRate(s string) float64 {
	if s == "" || s == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
