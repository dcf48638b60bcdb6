package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/adapter"
	"github.com/pithecene-io/courier/adapter/redis"
	"github.com/pithecene-io/courier/adapter/webhook"
	"github.com/pithecene-io/courier/cli/config"
	"github.com/pithecene-io/courier/cli/render"
	"github.com/pithecene-io/courier/ipc"
	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/message"
	"github.com/pithecene-io/courier/metrics"
	"github.com/pithecene-io/courier/project"
	"github.com/pithecene-io/courier/runtime"
	"github.com/pithecene-io/courier/step"
	"github.com/pithecene-io/courier/transport/websocket"
	"github.com/pithecene-io/courier/types"
)

// Exit codes for publish.
const (
	exitOK           = 0
	exitFailed       = 1
	exitCanceled     = 2
	exitInvalidInput = 3
)

// defaultStepName names the step when neither config nor flags do.
const defaultStepName = "publish"

// PublishCommand returns the publish command.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Publish one message over a WebSocket connection",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to courier.yaml",
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "WebSocket endpoint (ws:// or wss://)",
			},
			&cli.StringSliceFlag{
				Name:  "header",
				Usage: "Handshake header as key=value (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "handshake-timeout",
				Usage: "Opening handshake timeout",
			},
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Message kind (see `courier kinds`)",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Message text; ${Name} placeholders are expanded",
			},
			&cli.StringFlag{
				Name:  "message-file",
				Usage: "Read the message text from a file",
			},
			&cli.IntFlag{
				Name:  "timeout-ms",
				Usage: "Publish timeout in milliseconds (0 = none)",
			},
			&cli.StringSliceFlag{
				Name:  "property",
				Usage: "Expansion property as key=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "project-dir",
				Usage: "Directory BinaryFile references resolve against",
			},
			&cli.StringFlag{
				Name:  "step-name",
				Usage: "Step name used in logs and reports",
			},
			&cli.StringFlag{
				Name:  "report-ipc",
				Usage: "Write a msgpack step report frame to a file, or - for stdout",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "Write Prometheus metrics to a textfile",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to a rotating file instead of stderr",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		}, OutputFlags()...),
		Action: publishAction,
	}
}

// publishOptions is the merged result of config file and flags.
type publishOptions struct {
	settings   types.StepSettings
	stepName   string
	connection config.ConnectionConfig
	properties map[string]string
	project    config.ProjectConfig
	adapter    config.AdapterConfig
	log        config.LogConfig
	metrics    string
	reportIPC  string
	quiet      bool
}

func publishAction(c *cli.Context) error {
	opts, err := resolvePublishOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	logger, err := newLogger(opts)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	defer func() { _ = logger.Sync() }()

	token := runtime.NewCancellationToken()
	var finished atomic.Bool
	notifyCtx, abandonNotify := context.WithCancel(c.Context)
	defer abandonNotify()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go watchSignals(sigCh, token, &finished, abandonNotify, notifyCtx.Done())

	run := publishRun{
		ctx:       c.Context,
		notifyCtx: notifyCtx,
		token:     token,
		finished:  &finished,
		logger:    logger,
		stdout:    c.App.Writer,
	}
	result, err := executePublish(run, opts)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}

	if !opts.quiet && opts.reportIPC != "-" {
		if err := r.RenderReport(result.Report()); err != nil {
			return fmt.Errorf("failed to render result: %w", err)
		}
	}

	if code := statusToExitCode(result.Status()); code != exitOK {
		return cli.Exit("", code)
	}
	return nil
}

// watchSignals cancels the publish on the first signal. A signal after the
// publish finished, or a second one, abandons pending notifications.
func watchSignals(sigCh <-chan os.Signal, token *runtime.CancellationToken, finished *atomic.Bool, abandon context.CancelFunc, done <-chan struct{}) {
	for {
		select {
		case <-sigCh:
			if finished.Load() || token.Canceled() {
				abandon()
				return
			}
			token.Cancel()
		case <-done:
			return
		}
	}
}

// publishRun is the process-level state one publish runs under.
type publishRun struct {
	ctx context.Context
	// notifyCtx bounds result notifications.
	notifyCtx context.Context
	token     *runtime.CancellationToken
	// finished is set once the result is final, before notifications.
	finished *atomic.Bool
	logger   *log.Logger
	stdout   io.Writer
}

// executePublish wires the connection, project, listeners and step, and
// runs one publish. Errors are setup failures; publish failures are
// reported on the result.
func executePublish(run publishRun, opts *publishOptions) (*runtime.ExecutionResult, error) {
	ctx, token, logger := run.ctx, run.token, run.logger
	listeners, cleanup, err := buildListeners(run, opts)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	resolver := &project.Resolver{Local: project.Dir{Root: opts.project.Dir}}
	if opts.project.S3.Enabled {
		store, err := project.NewS3Store(ctx, project.S3Config{
			Region:       opts.project.S3.Region,
			Endpoint:     opts.project.S3.Endpoint,
			UsePathStyle: opts.project.S3.PathStyle,
			MaxBytes:     opts.project.S3.MaxBytes,
		})
		if err != nil {
			return nil, err
		}
		resolver.Objects = store
	}

	env := step.Env{
		Project:  resolver,
		Expander: step.NewExpander(opts.properties),
		Token:    token,
	}
	if opts.connection.URL != "" {
		conn := websocket.Dial(ctx, websocket.Options{
			URL:              opts.connection.URL,
			Header:           toHeader(opts.connection.Headers),
			HandshakeTimeout: opts.connection.HandshakeTimeout.Duration,
			Logger:           logger,
		})
		defer func() { _ = conn.Close() }()
		env.Connections = conn
	}

	s := step.New(opts.stepName)
	s.ReadSettings(opts.settings)

	controller := runtime.NewController(runtime.ControllerConfig{
		Logger:    logger,
		Listeners: listeners,
	})
	return s.Execute(ctx, controller, env), nil
}

// buildListeners creates the result listeners the options ask for. The
// returned cleanup runs after the result has been delivered.
func buildListeners(run publishRun, opts *publishOptions) ([]runtime.Listener, func(), error) {
	logger, stdout := run.logger, run.stdout
	listeners := []runtime.Listener{
		runtime.ListenerFunc(func(*runtime.ExecutionResult) { run.finished.Store(true) }),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if opts.metrics != "" {
		collector := metrics.NewCollector(opts.stepName)
		listeners = append(listeners, collector)
		path := opts.metrics
		closers = append(closers, func() {
			if err := collector.WriteTextfile(path); err != nil {
				logger.Warn("failed to write metrics textfile", map[string]any{"path": path, "error": err.Error()})
			}
		})
	}

	switch opts.reportIPC {
	case "":
	case "-":
		listeners = append(listeners, ipc.NewReportListener(ipc.NewFrameEncoder(stdout), logger))
	default:
		f, err := os.OpenFile(opts.reportIPC, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("cannot open report file: %w", err)
		}
		closers = append(closers, func() { _ = f.Close() })
		listeners = append(listeners, ipc.NewReportListener(ipc.NewFrameEncoder(f), logger))
	}

	if opts.adapter.Type != "" {
		a, err := newAdapter(opts.adapter)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = a.Close() })
		listeners = append(listeners, adapter.NewListener(run.notifyCtx, a, 0, logger))
	}

	return listeners, cleanup, nil
}

func newAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := 3
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}
	switch cfg.Type {
	case config.AdapterWebhook:
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case config.AdapterRedis:
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

// resolvePublishOptions merges the config file, when given, with flags.
// Flags win.
func resolvePublishOptions(c *cli.Context) (*publishOptions, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	opts := &publishOptions{
		settings:   cfg.Step.Settings(),
		stepName:   cfg.Step.Name,
		connection: cfg.Connection,
		properties: make(map[string]string, len(cfg.Properties)),
		project:    cfg.Project,
		adapter:    cfg.Adapter,
		log:        cfg.Log,
		metrics:    cfg.Metrics.Textfile,
		reportIPC:  c.String("report-ipc"),
		quiet:      c.Bool("quiet"),
	}
	for k, v := range cfg.Properties {
		opts.properties[k] = v
	}

	messageFile := cfg.Step.MessageFile
	if c.IsSet("message") && c.IsSet("message-file") {
		return nil, fmt.Errorf("--message and --message-file are mutually exclusive")
	}
	if c.IsSet("message") {
		opts.settings.Message = c.String("message")
		messageFile = ""
	}
	if c.IsSet("message-file") {
		messageFile = c.String("message-file")
	}
	if messageFile != "" {
		data, err := os.ReadFile(messageFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read message file: %w", err)
		}
		opts.settings.Message = string(data)
	}

	if c.IsSet("kind") {
		opts.settings.MessageKind = c.String("kind")
	}
	if opts.settings.MessageKind == "" {
		opts.settings.MessageKind = string(message.DefaultKind)
	}
	if _, ok := message.ParseKind(opts.settings.MessageKind); !ok {
		return nil, fmt.Errorf("unknown message kind %q", opts.settings.MessageKind)
	}

	if c.IsSet("timeout-ms") {
		opts.settings.TimeoutMillis = c.Int("timeout-ms")
	}
	if opts.settings.TimeoutMillis < 0 {
		return nil, fmt.Errorf("--timeout-ms must be >= 0, got %d", opts.settings.TimeoutMillis)
	}

	if c.IsSet("url") {
		opts.connection.URL = c.String("url")
	}
	if c.IsSet("handshake-timeout") {
		opts.connection.HandshakeTimeout = config.Duration{Duration: c.Duration("handshake-timeout")}
	}
	headers, err := parsePairs(c.StringSlice("header"), "--header")
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		merged := make(map[string]string, len(opts.connection.Headers)+len(headers))
		for k, v := range opts.connection.Headers {
			merged[k] = v
		}
		for k, v := range headers {
			merged[k] = v
		}
		opts.connection.Headers = merged
	}

	props, err := parsePairs(c.StringSlice("property"), "--property")
	if err != nil {
		return nil, err
	}
	for k, v := range props {
		opts.properties[k] = v
	}

	if c.IsSet("project-dir") {
		opts.project.Dir = c.String("project-dir")
	}
	if c.IsSet("step-name") {
		opts.stepName = c.String("step-name")
	}
	if opts.stepName == "" {
		opts.stepName = defaultStepName
	}
	if c.IsSet("metrics-file") {
		opts.metrics = c.String("metrics-file")
	}
	if c.IsSet("log-level") {
		opts.log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		opts.log.File = c.String("log-file")
	}

	return opts, nil
}

// parsePairs parses key=value flag values.
func parsePairs(values []string, flag string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, kv := range values {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%s must be key=value, got %q", flag, kv)
		}
		out[k] = v
	}
	return out, nil
}

func toHeader(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

// newLogger builds the step logger. Interactive sessions default to warn so
// logs do not bury the rendered result.
func newLogger(opts *publishOptions) (*log.Logger, error) {
	level := opts.log.Level
	if level == "" {
		level = "info"
		if opts.log.File == "" && isStderrTTY() {
			level = "warn"
		}
	}
	logOpts := log.Options{Level: level}
	if opts.log.File != "" {
		logOpts.File = &log.FileOptions{
			Path:       opts.log.File,
			MaxSizeMB:  opts.log.MaxSizeMB,
			MaxBackups: opts.log.MaxBackups,
			MaxAgeDays: opts.log.MaxAgeDays,
		}
	}
	return log.New(opts.stepName, logOpts)
}

// statusToExitCode maps a terminal status to the process exit code.
func statusToExitCode(status types.StepStatus) int {
	switch status {
	case types.StepStatusOK:
		return exitOK
	case types.StepStatusCanceled:
		return exitCanceled
	default:
		return exitFailed
	}
}

