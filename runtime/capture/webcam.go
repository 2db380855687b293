package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"
)

// Webcam defaults.
const (
	DefaultWebcamWidth  = 640
	DefaultWebcamHeight = 480
	// webcamFrameRate is the device capture rate; frames are sampled far
	// below it.
	webcamFrameRate = 30
	// webcamGrabTimeout bounds a single ffmpeg frame grab.
	webcamGrabTimeout = 5 * time.Second
)

// WebcamConfig holds webcam configuration.
type WebcamConfig struct {
	DeviceIndex int // Camera device index (0 = default)
	Width       int // Capture width (default 640)
	Height      int // Capture height (default 480)
}

// commandRunner runs a command and returns stdout; stderr is folded into the error.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}

// Webcam grabs single JPEG frames with ffmpeg using the platform's capture
// backend (avfoundation, v4l2 or dshow).
type Webcam struct {
	cfg      WebcamConfig
	goos     string
	lookPath func(string) (string, error)
	run      commandRunner

	mu     sync.Mutex
	opened bool
	busy   bool
}

// NewWebcam creates a webcam source. Open checks that ffmpeg is installed
// and that the device answers.
func NewWebcam(cfg WebcamConfig) *Webcam {
	if cfg.Width == 0 {
		cfg.Width = DefaultWebcamWidth
	}
	if cfg.Height == 0 {
		cfg.Height = DefaultWebcamHeight
	}
	return &Webcam{
		cfg:      cfg,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// Open implements FrameSource. It grabs one probe frame so that permission
// problems surface before the session connects.
func (w *Webcam) Open(ctx context.Context) error {
	if _, err := w.lookPath("ffmpeg"); err != nil {
		return fmt.Errorf("%w: ffmpeg not found: %v", ErrDeviceUnavailable, err)
	}
	if len(w.inputArgs()) == 0 {
		return fmt.Errorf("%w: unsupported platform %s", ErrDeviceUnavailable, w.goos)
	}

	w.mu.Lock()
	w.opened = true
	w.mu.Unlock()

	if _, err := w.Capture(ctx); err != nil {
		w.mu.Lock()
		w.opened = false
		w.mu.Unlock()
		return err
	}
	return nil
}

// Ready implements FrameSource. A camera busy with a previous grab is not ready.
func (w *Webcam) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opened && !w.busy
}

// Capture implements FrameSource.
func (w *Webcam) Capture(ctx context.Context) ([]byte, error) {
	w.mu.Lock()
	if !w.opened {
		w.mu.Unlock()
		return nil, ErrNotOpen
	}
	w.busy = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, webcamGrabTimeout)
	defer cancel()

	out, err := w.run(ctx, "ffmpeg", w.args()...)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", classifyDeviceError(err.Error()), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrDeviceUnavailable)
	}
	return out, nil
}

// Close implements FrameSource.
func (w *Webcam) Close() error {
	w.mu.Lock()
	w.opened = false
	w.mu.Unlock()
	return nil
}

func (w *Webcam) inputArgs() []string {
	size := fmt.Sprintf("%dx%d", w.cfg.Width, w.cfg.Height)
	rate := fmt.Sprintf("%d", webcamFrameRate)

	switch w.goos {
	case "darwin":
		return []string{"-f", "avfoundation", "-framerate", rate, "-video_size", size,
			"-i", fmt.Sprintf("%d", w.cfg.DeviceIndex)}
	case "linux":
		return []string{"-f", "v4l2", "-framerate", rate, "-video_size", size,
			"-i", fmt.Sprintf("/dev/video%d", w.cfg.DeviceIndex)}
	case "windows":
		return []string{"-f", "dshow", "-framerate", rate, "-video_size", size,
			"-i", fmt.Sprintf("video=%d", w.cfg.DeviceIndex)}
	default:
		return nil
	}
}

func (w *Webcam) args() []string {
	args := append([]string{"-loglevel", "error"}, w.inputArgs()...)
	return append(args,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5", // Quality (2-31, lower is better); re-encoded later
		"-",
	)
}
