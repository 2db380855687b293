package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/RahulMirji/Cloth-Recommendation-sub001/pkg/config"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/capture"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/events"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/live"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/logger"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/metrics/prometheus"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/playback"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/statestore"
	"github.com/RahulMirji/Cloth-Recommendation-sub001/runtime/telemetry"
)

const shutdownTimeout = 5 * time.Second

// runParams are the manifest plus command-line overrides.
type runParams struct {
	spec     config.LiveSessionSpec
	apiKey   string
	partials bool
	stdin    io.Reader
	out      io.Writer
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a live session and print transcripts",
		Long: `Start a live session using the configured microphone and camera.
Model speech plays on the default speaker and transcripts are printed.
Lines typed on stdin are sent as text turns. Press Ctrl-C to end.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := loadRunParams(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, params)
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics at this address")
	cmd.Flags().String("otlp-endpoint", "", "Export session spans to this OTLP/HTTP endpoint")
	cmd.Flags().String("redis-addr", "", "Persist turn history to this Redis server")
	cmd.Flags().String("record-dir", "", "Record session events as JSON Lines in this directory")
	cmd.Flags().Bool("video", false, "Enable the camera regardless of the manifest")
	cmd.Flags().Bool("tone", false, "Replace the microphone with a test tone")
	cmd.Flags().Bool("partials", false, "Print partial transcripts as they arrive")
	return cmd
}

func loadRunParams(cmd *cobra.Command) (*runParams, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLiveSession(path)
	if err != nil {
		return nil, err
	}
	spec := cfg.Spec
	flags := cmd.Flags()

	if v, _ := flags.GetString("metrics-addr"); v != "" {
		spec.Metrics.Addr = v
	}
	if v, _ := flags.GetString("otlp-endpoint"); v != "" {
		spec.Telemetry.OTLPEndpoint = v
	}
	if v, _ := flags.GetString("redis-addr"); v != "" {
		spec.History.RedisAddr = v
	}
	if v, _ := flags.GetString("record-dir"); v != "" {
		spec.Recording.Dir = v
	}
	if v, _ := flags.GetBool("video"); v {
		spec.Video.Enabled = true
	}
	if v, _ := flags.GetBool("tone"); v {
		spec.Audio.Tone = true
	}

	logging := config.DefaultLoggingConfig()
	if spec.Logging != nil {
		logging = *spec.Logging
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		logging.DefaultLevel = config.LogLevelDebug
	}
	if err := logger.Configure(logging.ToLoggerSpec()); err != nil {
		return nil, err
	}

	partials, _ := flags.GetBool("partials")
	return &runParams{
		spec:     spec,
		apiKey:   spec.APIKey(),
		partials: partials,
		stdin:    cmd.InOrStdin(),
		out:      cmd.OutOrStdout(),
	}, nil
}

// runSession wires the optional observers, runs one session until ctx is
// done or the connection ends, and tears everything down.
func runSession(ctx context.Context, p *runParams) error {
	log := logger.Component("cli")
	bus := events.NewEventBus()
	cleanup, err := wireObservers(ctx, p.spec, bus, log)
	defer cleanup()
	// Drain the bus before the observers shut down.
	defer bus.Close()
	if err != nil {
		return err
	}

	store, closeStore, err := openHistory(ctx, p.spec)
	if err != nil {
		return err
	}
	defer closeStore()

	session := live.NewSession(live.SessionConfig{
		Endpoint: p.spec.Endpoint,
		APIKey:   p.apiKey,
		Audio:    audioSource(p.spec),
		Video:    capture.NewWebcam(p.spec.WebcamConfig()),
		Sink:     outputSink(log),
		Store:    store,
		Bus:      bus,
	})

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(p.out, format, args...)
	}

	ended := make(chan struct{})
	var endOnce sync.Once
	session.OnTranscript(func(speaker live.Speaker, text string, final bool) {
		if final {
			printf("[%s] %s\n", speaker, text)
		} else if p.partials {
			printf("[%s, partial] %s\n", speaker, text)
		}
	})
	session.OnError(func(err error) { printf("error: %v\n", err) })
	session.OnConnectionChange(func(connected bool) {
		if !connected {
			endOnce.Do(func() { close(ended) })
		}
	})

	if err := session.Start(ctx, p.spec.ToOptions()); err != nil {
		return err
	}
	printf("session %s active, Ctrl-C to end\n", session.ID())

	go readTextTurns(ctx, session, p.stdin, log)

	select {
	case <-ctx.Done():
	case <-ended:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = session.Stop(stopCtx)

	usage := session.Usage()
	printf("session ended (%s), tokens: %d prompt, %d response\n",
		session.State(), usage.PromptTokens, usage.ResponseTokens)
	if session.State() == live.StateFailed {
		return errors.New("session failed")
	}
	return nil
}

// wireObservers subscribes metrics, tracing and recording as configured.
// The returned cleanup is always safe to call.
func wireObservers(ctx context.Context, spec config.LiveSessionSpec, bus *events.EventBus, log *logger.ComponentLogger) (func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if spec.Metrics.Addr != "" {
		exporter := prometheus.NewExporter(spec.Metrics.Addr)
		if err := exporter.Start(func(err error) { log.Error("metrics server failed", "error", err) }); err != nil {
			return cleanup, fmt.Errorf("start metrics exporter: %w", err)
		}
		bus.SubscribeAll(prometheus.NewMetricsListener().Listener())
		log.Info("serving metrics", "addr", exporter.Addr())
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = exporter.Shutdown(shutdownCtx)
		})
	}

	if spec.Telemetry.OTLPEndpoint != "" {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.ProviderConfig{
			Endpoint:       spec.Telemetry.OTLPEndpoint,
			ServiceName:    spec.Telemetry.ServiceName,
			ServiceVersion: version,
			SampleRatio:    spec.Telemetry.SampleRatio,
		})
		if err != nil {
			return cleanup, fmt.Errorf("create tracer provider: %w", err)
		}
		telemetry.SetupPropagation()
		bus.SubscribeAll(telemetry.NewOTelEventListener(telemetry.Tracer(tp)).OnEvent)
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		})
	}

	if spec.Recording.Dir != "" {
		recorder, err := events.NewFileEventStore(spec.Recording.Dir)
		if err != nil {
			return cleanup, err
		}
		bus.SubscribeAll(recorder.Listener(func(err error) { log.Warn("event not recorded", "error", err) }))
		closers = append(closers, func() { _ = recorder.Close() })
	}
	return cleanup, nil
}

// openHistory connects the Redis turn store when configured.
func openHistory(ctx context.Context, spec config.LiveSessionSpec) (statestore.TranscriptStore, func(), error) {
	if spec.History.RedisAddr == "" {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: spec.History.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, func() {}, fmt.Errorf("connect to redis %s: %w", spec.History.RedisAddr, err)
	}

	var opts []statestore.RedisOption
	if ttl, ok := spec.HistoryTTL(); ok {
		opts = append(opts, statestore.WithTTL(ttl))
	}
	if spec.History.Prefix != "" {
		opts = append(opts, statestore.WithPrefix(spec.History.Prefix))
	}
	return statestore.NewRedisStore(client, opts...), func() { _ = client.Close() }, nil
}

func audioSource(spec config.LiveSessionSpec) capture.AudioSource {
	if !spec.Audio.Tone {
		return nil
	}
	frame := time.Duration(spec.Audio.FrameDurationMs) * time.Millisecond
	if frame == 0 {
		frame = 100 * time.Millisecond
	}
	return &capture.ToneSource{Frequency: 220, Amplitude: 0.2, FrameDuration: frame}
}

func outputSink(log *logger.ComponentLogger) playback.Sink {
	sink, err := playback.NewDeviceSink()
	if err != nil {
		log.Warn("no speaker available, model audio is discarded", "error", err)
		return &playback.DiscardSink{}
	}
	return sink
}

// readTextTurns sends each stdin line as a complete user turn.
func readTextTurns(ctx context.Context, session *live.Session, in io.Reader, log *logger.ComponentLogger) {
	if in == nil {
		return
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := session.SendText(ctx, line, true); err != nil {
			log.Warn("text turn not sent", "error", err)
		}
	}
}
