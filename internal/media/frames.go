package media

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/skymonitor/meteor-go/internal/errors"
)

// FrameReader streams single-channel frames from a clip by piping ffmpeg's
// rawvideo output. Each Next call returns one frame of Width*Height bytes.
type FrameReader struct {
	Width  int
	Height int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	path   string
}

// OpenFrameReader starts an ffmpeg process decoding the clip to 8-bit
// grayscale raw frames.
func OpenFrameReader(ctx context.Context, path string, width, height int) (*FrameReader, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner", "-nostdin",
		"-loglevel", "error",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, decodeError(path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, decodeError(path, err)
	}

	return &FrameReader{
		Width:  width,
		Height: height,
		cmd:    cmd,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 1<<16),
		path:   path,
	}, nil
}

// Next reads the next frame into a fresh buffer. It returns io.EOF after
// the final frame.
func (fr *FrameReader) Next() ([]byte, error) {
	buf := make([]byte, fr.Width*fr.Height)
	if _, err := io.ReadFull(fr.reader, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, decodeError(fr.path, err)
	}
	return buf, nil
}

// Close reaps the ffmpeg process. A non-zero exit after a complete read is
// reported as a decode error.
func (fr *FrameReader) Close() error {
	_, _ = io.Copy(io.Discard, fr.reader)
	_ = fr.stdout.Close()
	if err := fr.cmd.Wait(); err != nil {
		return decodeError(fr.path, err)
	}
	return nil
}

func decodeError(path string, err error) error {
	return errors.New(fmt.Errorf("decoding %s: %w", path, err)).
		Component("media").
		Category(errors.CategoryDetection).
		Context("clip_path", path).
		Build()
}
