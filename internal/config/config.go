// Package config resolves broker connection settings from built-in defaults,
// command line flags, a YAML config file and an AMQP URL.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/glimte/rabbiteer/internal/apperr"
	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 5672
	DefaultLogin    = "guest"
	DefaultPassword = "guest"
	DefaultVhost    = "/"
)

// ConnectionOptions identifies a broker and the credentials to use for it
type ConnectionOptions struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Login    string `yaml:"user"`
	Password string `yaml:"password"`
	Vhost    string `yaml:"vhost"`
}

// LogConfig selects the log level and handler format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// File is the layout of the YAML config file
type File struct {
	URL        string            `yaml:"url"`
	Connection ConnectionOptions `yaml:",inline"`
	Log        LogConfig         `yaml:"log"`
}

// Overrides holds individually set flags. Nil fields were not set.
type Overrides struct {
	Host     *string
	Port     *int
	Login    *string
	Password *string
	Vhost    *string
}

// Sources lists every place connection settings can come from
type Sources struct {
	Flags      Overrides
	ConfigPath string
	URL        string
}

// Settings is the outcome of Resolve
type Settings struct {
	Connection ConnectionOptions
	Log        LogConfig
}

// Defaults returns the built-in connection options
func Defaults() ConnectionOptions {
	return ConnectionOptions{
		Host:     DefaultHost,
		Port:     DefaultPort,
		Login:    DefaultLogin,
		Password: DefaultPassword,
		Vhost:    DefaultVhost,
	}
}

func (l *LogConfig) SetDefaults() {
	if l.Level == "" {
		l.Level = "warn"
	}
	if l.Format != "json" && l.Format != "text" {
		l.Format = "text"
	}
}

// Resolve applies, in increasing precedence, defaults, explicitly set flags,
// the config file and the URL.
func Resolve(src Sources) (Settings, error) {
	settings := Settings{Connection: Defaults()}
	opts := &settings.Connection

	applyOverrides(opts, src.Flags)

	if src.ConfigPath != "" {
		f, err := LoadFile(src.ConfigPath)
		if err != nil {
			return Settings{}, err
		}
		opts.merge(f.Connection)
		if f.URL != "" {
			if err := opts.applyURL(f.URL); err != nil {
				return Settings{}, err
			}
		}
		settings.Log = f.Log
	}

	if src.URL != "" {
		if err := opts.applyURL(src.URL); err != nil {
			return Settings{}, err
		}
	}

	settings.Log.SetDefaults()

	if err := opts.Validate(); err != nil {
		return Settings{}, err
	}

	return settings, nil
}

// LoadFile reads a YAML config file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.ConfigError("read config", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperr.ConfigError("unmarshal config "+path, err)
	}

	return &f, nil
}

// Validate checks the options can be dialed
func (o ConnectionOptions) Validate() error {
	if strings.TrimSpace(o.Host) == "" {
		return apperr.ConfigError("validate", fmt.Errorf("host must not be empty"))
	}
	if o.Port < 1 || o.Port > 65535 {
		return apperr.ConfigError("validate", fmt.Errorf("port %d out of range", o.Port))
	}
	return nil
}

// URI renders the options as an amqp:// URL
func (o ConnectionOptions) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     o.Host,
		Port:     o.Port,
		Username: o.Login,
		Password: o.Password,
		Vhost:    o.Vhost,
	}.String()
}

// redactedPassword survives url escaping unchanged
const redactedPassword = "xxxxx"

// Redacted renders the URL with the password masked
func (o ConnectionOptions) Redacted() string {
	if o.Password != "" {
		o.Password = redactedPassword
	}
	return o.URI()
}

func applyOverrides(o *ConnectionOptions, f Overrides) {
	if f.Host != nil {
		o.Host = *f.Host
	}
	if f.Port != nil {
		o.Port = *f.Port
	}
	if f.Login != nil {
		o.Login = *f.Login
	}
	if f.Password != nil {
		o.Password = *f.Password
	}
	if f.Vhost != nil {
		o.Vhost = *f.Vhost
	}
}

func (o *ConnectionOptions) merge(other ConnectionOptions) {
	if other.Host != "" {
		o.Host = other.Host
	}
	if other.Port != 0 {
		o.Port = other.Port
	}
	if other.Login != "" {
		o.Login = other.Login
	}
	if other.Password != "" {
		o.Password = other.Password
	}
	if other.Vhost != "" {
		o.Vhost = other.Vhost
	}
}

func (o *ConnectionOptions) applyURL(raw string) error {
	uri, err := amqp.ParseURI(raw)
	if err != nil {
		return apperr.ConfigError("parse url", err)
	}
	if uri.Scheme != "amqp" {
		return apperr.ConfigError("parse url", fmt.Errorf("unsupported scheme %q", uri.Scheme))
	}

	o.Host = uri.Host
	o.Port = uri.Port
	o.Login = uri.Username
	o.Password = uri.Password
	o.Vhost = uri.Vhost
	return nil
}
