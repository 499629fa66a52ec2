// Package config resolves run settings from dotenv files, the environment and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/phobologic/cloudgraph/internal/fetch"
	"github.com/phobologic/cloudgraph/internal/inspect"
	"github.com/phobologic/cloudgraph/internal/pipeline"
	"github.com/phobologic/cloudgraph/internal/render"
)

// DefaultS3Endpoint serves s3:// package locations when no endpoint is set.
const DefaultS3Endpoint = "s3.amazonaws.com"

// ExitError carries the process exit code for a usage error.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// Config is the resolved configuration of one run.
type Config struct {
	Qualifier string
	StylePath string
	Format    render.Format
	Focus     string
	Top       int
	Parallel  bool
	// Snapshot replaces the AWS sources with a JSON listing file.
	Snapshot  string
	Region    string
	Profile   string
	LogLevel  string
	LogFormat string
	CacheSize int
	S3        fetch.S3Config

	ShowVersion bool
}

// Env returns a lookup that consults getenv first and then the given dotenv
// files in order. Unreadable files are skipped.
func Env(getenv func(string) string, files ...string) func(string) string {
	values := make(map[string]string)
	for _, f := range files {
		m, err := godotenv.Read(f)
		if err != nil {
			continue
		}
		for k, v := range m {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
	}
	return func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return values[key]
	}
}

// Parse resolves the configuration. The boolean result reports that the
// caller should exit cleanly (help was requested). Usage errors are returned
// as *ExitError.
func Parse(args []string, getenv func(string) string, output io.Writer) (*Config, bool, error) {
	fs := flag.NewFlagSet("cloudgraph", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprint(output, `Usage:
  cloudgraph [flags]
  cloudgraph init [flags] [path]

Render the dependency graph of API Gateway routes, SNS topics and Lambda
functions. The graph is written to stdout.

Flags:
`)
		fs.PrintDefaults()
	}

	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		S3: fetch.S3Config{
			Endpoint:  env("CLOUDGRAPH_S3_ENDPOINT", DefaultS3Endpoint),
			Region:    env("AWS_REGION", ""),
			AccessKey: env("CLOUDGRAPH_S3_ACCESS_KEY", ""),
			SecretKey: env("CLOUDGRAPH_S3_SECRET_KEY", ""),
		},
	}
	useSSL, err := parseBool(env("CLOUDGRAPH_S3_USE_SSL", "true"))
	if err != nil {
		return nil, false, usageError("invalid CLOUDGRAPH_S3_USE_SSL: %v", err)
	}
	cfg.S3.UseSSL = useSSL

	var format string
	fs.StringVar(&cfg.Qualifier, "qualifier", env("CLOUDGRAPH_QUALIFIER", pipeline.DefaultQualifier), "function alias to graph")
	fs.StringVar(&cfg.StylePath, "style", env("CLOUDGRAPH_STYLE", ""), "style file (.hcl or .json); built-in styles when empty")
	fs.StringVar(&format, "format", string(render.FormatDOT), "output format: dot or toon")
	fs.StringVar(&cfg.Focus, "focus", "", "keep nodes whose label contains this text, plus their neighbours")
	fs.IntVar(&cfg.Top, "top", 0, "keep only the N most central nodes")
	fs.BoolVar(&cfg.Parallel, "parallel", false, "collect routes, topics and functions concurrently")
	fs.StringVar(&cfg.Snapshot, "snapshot", "", "read resources from a JSON snapshot instead of AWS")
	fs.StringVar(&cfg.Region, "region", env("AWS_REGION", ""), "AWS region")
	fs.StringVar(&cfg.Profile, "profile", env("AWS_PROFILE", ""), "AWS shared config profile")
	fs.StringVar(&cfg.LogLevel, "log-level", "warn", "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json")
	fs.IntVar(&cfg.CacheSize, "cache-size", inspect.DefaultCacheSize, "distinct packages remembered per run")
	fs.BoolVar(&cfg.ShowVersion, "V", false, "show version and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() > 0 {
		return nil, false, usageError("unexpected argument %q", fs.Arg(0))
	}
	if cfg.ShowVersion {
		return cfg, false, nil
	}

	if cfg.Format, err = render.ParseFormat(format); err != nil {
		return nil, false, usageError("%v", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, false, usageError("invalid log-format: must be 'text' or 'json'")
	}
	if strings.TrimSpace(cfg.Qualifier) == "" {
		return nil, false, usageError("qualifier must not be empty")
	}
	if cfg.Top < 0 {
		return nil, false, usageError("top must not be negative")
	}
	if cfg.CacheSize < 0 {
		return nil, false, usageError("cache-size must not be negative")
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = cfg.Region
	}
	return cfg, false, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return strconv.ParseBool(raw)
}
