package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/glimte/rabbiteer/internal/apperr"
	"github.com/glimte/rabbiteer/internal/config"
	"github.com/glimte/rabbiteer/internal/rabbitmq"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const urlEnv = "RABBITEER_URL"

var Commit string

// rootOptions holds the connection and logging flags shared by all commands
type rootOptions struct {
	host       string
	port       int
	user       string
	password   string
	vhost      string
	url        string
	configPath string
	logLevel   string
	verbose    bool
	retries    int

	// dial replaces the amqp dialer in tests
	dial rabbitmq.Dialer
	// running is set once a subcommand's RunE has been entered
	running bool
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rabbiteer",
		Short:         "Publish to and subscribe from a RabbitMQ topic exchange",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return apperr.ConfigError(c.CommandPath(), err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.host, "host", config.DefaultHost, "Broker host")
	flags.IntVar(&opts.port, "port", config.DefaultPort, "Broker port")
	flags.StringVarP(&opts.user, "user", "u", config.DefaultLogin, "Login user")
	flags.StringVarP(&opts.password, "password", "p", config.DefaultPassword, "Login password")
	flags.StringVar(&opts.vhost, "vhost", config.DefaultVhost, "Virtual host")
	flags.StringVar(&opts.url, "url", os.Getenv(urlEnv), "AMQP url, overrides the other connection flags (env "+urlEnv+")")
	flags.StringVarP(&opts.configPath, "config", "C", "", "YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&opts.verbose, "verbose", false, "Log at debug level")
	flags.IntVar(&opts.retries, "connect-retries", 0, "Retry a failed connection this many times with backoff")

	cmd.AddCommand(newPublishCommand(opts), newSubscribeCommand(opts))
	return cmd
}

// setup resolves the connection settings and builds the logger and client
func (o *rootOptions) setup(cmd *cobra.Command) (*rabbitmq.Client, *slog.Logger, error) {
	settings, err := config.Resolve(config.Sources{
		Flags:      o.overrides(cmd.Flags()),
		ConfigPath: o.configPath,
		URL:        o.url,
	})
	if err != nil {
		return nil, nil, err
	}

	if o.logLevel != "" {
		settings.Log.Level = o.logLevel
	}
	logger := newLogger(cmd.ErrOrStderr(), settings.Log, o.verbose)
	logger.Debug("connecting", "broker", settings.Connection.Redacted())

	clientOpts := []rabbitmq.ClientOption{
		rabbitmq.WithLogger(logger),
		rabbitmq.WithConnectRetries(o.retries),
	}
	if o.dial != nil {
		clientOpts = append(clientOpts, rabbitmq.WithDialer(o.dial))
	}
	return rabbitmq.NewClient(settings.Connection, clientOpts...), logger, nil
}

// overrides only carries flags given on the command line, so that defaults
// do not mask values from the config file
func (o *rootOptions) overrides(flags *pflag.FlagSet) config.Overrides {
	var ov config.Overrides
	if flags.Changed("host") {
		ov.Host = &o.host
	}
	if flags.Changed("port") {
		ov.Port = &o.port
	}
	if flags.Changed("user") {
		ov.Login = &o.user
	}
	if flags.Changed("password") {
		ov.Password = &o.password
	}
	if flags.Changed("vhost") {
		ov.Vhost = &o.vhost
	}
	return ov
}

func newLogger(w io.Writer, conf config.LogConfig, verbose bool) *slog.Logger {
	level := parseLogLevel(conf.Level)
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if conf.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func parseLogLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func version() string {
	if Commit == "" {
		return "dev"
	}
	return Commit
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, opts *rootOptions) error {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !opts.running && apperr.KindOf(err) == apperr.Unknown {
		// unknown commands, stray arguments and missing required flags
		return apperr.ConfigError("command line", err)
	}
	return err
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, &rootOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rabbiteer: %s\n", err)
		cancel()
		os.Exit(apperr.ExitCode(err))
	}
}
