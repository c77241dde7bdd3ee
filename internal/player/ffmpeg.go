package player

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// ffmpegStream is one ffmpeg child process decoding a stream URL to raw
// s16le PCM on stdout.
type ffmpegStream struct {
	cmd    *exec.Cmd
	reader io.ReadCloser
}

// openFFmpegStream launches ffmpeg with reconnect options suited for flaky
// live streams. The context only bounds process startup, not playback.
func openFFmpegStream(ctx context.Context, url string) (*ffmpegStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-reconnect_on_network_error", "1",
		"-nostdin",
		"-hide_banner",
		"-i", url,
		"-vn",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	reader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("command start error: %w", err)
	}

	return &ffmpegStream{cmd: cmd, reader: reader}, nil
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// close tears the process down. ffmpeg usually exits once its stdout closes;
// if it lingers past completionTimeout it is killed.
func (s *ffmpegStream) close() {
	s.reader.Close()

	done := make(chan struct{})
	go func() {
		_ = s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(completionTimeout):
		_ = s.cmd.Process.Kill()
		<-done
	}
}
