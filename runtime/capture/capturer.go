package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Frame rate bounds for camera sampling.
const (
	MinFPS     = 1.0
	MaxFPS     = 2.0
	DefaultFPS = 1.0
)

// ErrAlreadyStarted is returned by Start on a running capturer.
var ErrAlreadyStarted = errors.New("capturer already started")

// Logger is the logging surface used by the capturer.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(_ string, _ ...any) {}
func (noopLogger) Info(_ string, _ ...any)  {}
func (noopLogger) Warn(_ string, _ ...any)  {}
func (noopLogger) Error(_ string, _ ...any) {}

// Sink receives captured media. Implementations must not block; the
// session enqueues and returns.
type Sink interface {
	AudioFrame(pcm []byte)
	VideoFrame(jpeg []byte)
}

// Config controls capture pacing and frame normalization.
type Config struct {
	// FPS is the camera sampling rate, clamped to [MinFPS, MaxFPS].
	FPS float64
	// MaxWidth and MaxHeight bound normalized frames.
	MaxWidth  int
	MaxHeight int
	// JPEGQuality is the re-encode quality (1-100).
	JPEGQuality int
	// VideoEnabled starts the camera stream on.
	VideoEnabled bool
	// OnError receives non-fatal capture errors such as a failed frame grab.
	OnError func(error)
}

func (c *Config) defaults() {
	switch {
	case c.FPS == 0:
		c.FPS = DefaultFPS
	case c.FPS < MinFPS:
		c.FPS = MinFPS
	case c.FPS > MaxFPS:
		c.FPS = MaxFPS
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxHeight == 0 {
		c.MaxHeight = DefaultMaxHeight
	}
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
}

// Capturer pumps microphone frames and paced camera frames into a Sink.
// Devices are acquired in Start and released in Stop, including when Start
// fails part way.
type Capturer struct {
	audio  AudioSource
	video  FrameSource
	cfg    Config
	logger Logger

	mu           sync.Mutex
	muted        bool
	videoEnabled bool
	videoOpen    bool
	opened       bool
	running      bool
	cancel       context.CancelFunc
	group        *errgroup.Group
}

// NewCapturer creates a capturer. video may be nil for audio-only sessions.
func NewCapturer(audio AudioSource, video FrameSource, cfg Config, logger Logger) *Capturer {
	cfg.defaults()
	if logger == nil {
		logger = noopLogger{}
	}
	return &Capturer{
		audio:        audio,
		video:        video,
		cfg:          cfg,
		logger:       logger,
		videoEnabled: cfg.VideoEnabled && video != nil,
	}
}

// Open acquires the microphone, and the camera when video is enabled. If
// any device fails to open, everything already acquired is released and the
// error is returned; errors wrap ErrPermissionDenied or ErrDeviceUnavailable.
// Open is a no-op once devices are held.
func (c *Capturer) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked(ctx)
}

func (c *Capturer) openLocked(ctx context.Context) error {
	if c.opened {
		return nil
	}
	if err := c.audio.Open(ctx); err != nil {
		_ = c.audio.Close()
		return fmt.Errorf("open microphone: %w", err)
	}
	if c.videoEnabled {
		if err := c.video.Open(ctx); err != nil {
			_ = c.video.Close()
			_ = c.audio.Close()
			return fmt.Errorf("open camera: %w", err)
		}
		c.videoOpen = true
	}
	c.opened = true
	return nil
}

// Start begins streaming into sink, opening the devices first if Open has
// not been called. The loops run until Stop or ctx is cancelled.
func (c *Capturer) Start(ctx context.Context, sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyStarted
	}
	if err := c.openLocked(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return c.audioLoop(gctx, sink) })
	if c.video != nil {
		g.Go(func() error { return c.videoLoop(gctx, sink) })
	}

	c.cancel = cancel
	c.group = g
	c.running = true
	c.logger.Info("capture started", "video", c.videoEnabled, "fps", c.cfg.FPS)
	return nil
}

func (c *Capturer) audioLoop(ctx context.Context, sink Sink) error {
	for {
		pcm, err := c.audio.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("microphone read failed", "error", err)
			return fmt.Errorf("read microphone: %w", err)
		}
		// Muted frames are still drained from the device.
		if c.Muted() {
			continue
		}
		sink.AudioFrame(pcm)
	}
}

func (c *Capturer) videoLoop(ctx context.Context, sink Sink) error {
	limiter := rate.NewLimiter(rate.Limit(c.cfg.FPS), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		if !c.ensureVideo(ctx) || !c.video.Ready() {
			continue
		}

		raw, err := c.video.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("frame capture failed", "error", err)
			c.cfg.OnError(fmt.Errorf("capture frame: %w", err))
			continue
		}
		frame, err := NormalizeFrame(raw, c.cfg.MaxWidth, c.cfg.MaxHeight, c.cfg.JPEGQuality)
		if err != nil {
			c.logger.Warn("frame normalization failed", "error", err, "bytes", len(raw))
			c.cfg.OnError(err)
			continue
		}
		sink.VideoFrame(frame)
	}
}

// ensureVideo reports whether video should be sampled now. The camera is
// opened on enable and released on disable; a failed open disables video.
// Only the video loop touches the camera while capture is running.
func (c *Capturer) ensureVideo(ctx context.Context) bool {
	c.mu.Lock()
	enabled, open := c.videoEnabled, c.videoOpen
	c.mu.Unlock()

	switch {
	case !enabled && open:
		if err := c.video.Close(); err != nil {
			c.logger.Warn("camera close failed", "error", err)
		}
		c.mu.Lock()
		c.videoOpen = false
		c.mu.Unlock()
		c.logger.Debug("camera released")
		return false
	case !enabled:
		return false
	case open:
		return true
	}

	if err := c.video.Open(ctx); err != nil {
		_ = c.video.Close()
		c.mu.Lock()
		c.videoEnabled = false
		c.mu.Unlock()
		c.logger.Warn("camera open failed, video disabled", "error", err)
		c.cfg.OnError(fmt.Errorf("open camera: %w", err))
		return false
	}
	c.mu.Lock()
	c.videoOpen = true
	c.mu.Unlock()
	c.logger.Debug("camera opened")
	return true
}

// Wait blocks until the capture loops exit and returns the first fatal
// error. It returns nil if the capturer was never started.
func (c *Capturer) Wait() error {
	c.mu.Lock()
	g := c.group
	c.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop halts capture and releases the devices. It is idempotent and safe
// on a capturer that was only opened.
func (c *Capturer) Stop() error {
	c.mu.Lock()
	cancel, g := c.cancel, c.group
	wasRunning := c.running
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if wasRunning {
		cancel()
		_ = g.Wait()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return nil
	}
	c.opened = false
	err := c.audio.Close()
	if c.videoOpen {
		err = errors.Join(err, c.video.Close())
		c.videoOpen = false
	}
	c.logger.Info("capture stopped")
	return err
}

// SetMuted toggles microphone muting. Muted frames are read and discarded.
func (c *Capturer) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

// Muted reports whether the microphone is muted.
func (c *Capturer) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// SetVideoEnabled toggles camera sampling. Disabling releases the camera on
// the next pacing tick; enabling reopens it. It is a no-op without a camera.
func (c *Capturer) SetVideoEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.video == nil {
		return
	}
	c.videoEnabled = enabled
}

// VideoEnabled reports whether camera frames are being sampled.
func (c *Capturer) VideoEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoEnabled
}
