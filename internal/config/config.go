// Package config resolves the probe configuration from command-line flags,
// the environment (optionally seeded from a .env file) and an optional YAML
// file. Precedence, lowest first: defaults, YAML file, environment, flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultHost    = "localhost"
	DefaultPort    = 27017
	DefaultTimeout = 10 * time.Second
)

var (
	ErrLimitOrder    = errors.New("warning limit must be less than critical limit")
	ErrNegativeLimit = errors.New("limits must not be negative")
	ErrInvalidPort   = errors.New("port must be between 1 and 65535")
	ErrInvalidTime   = errors.New("timeout must be positive")
	ErrConfigFile    = errors.New("invalid config file")
)

type Config struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Warning  *int   `koanf:"warning"`
	Critical *int   `koanf:"critical"`

	Username   string `koanf:"username"`
	Password   string `koanf:"password"`
	AuthSource string `koanf:"auth_source"`

	Timeout  time.Duration `koanf:"timeout"`
	LogFile  string        `koanf:"log_file"`
	LogLevel string        `koanf:"log_level"`
}

// optionalInt is a flag.Value that remembers whether it was given.
type optionalInt struct {
	v *int
}

func (o *optionalInt) String() string {
	if o == nil || o.v == nil {
		return ""
	}
	return strconv.Itoa(*o.v)
}

func (o *optionalInt) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.v = &n
	return nil
}

type flags struct {
	host     string
	port     int
	warning  optionalInt
	critical optionalInt
	timeout  time.Duration
	config   string
	logFile  string
	verbose  bool
	set      map[string]bool
}

func newFlagSet(out io.Writer, f *flags) *flag.FlagSet {
	set := flag.NewFlagSet("check_mongodb_operations", flag.ContinueOnError)
	set.SetOutput(out)

	set.StringVar(&f.host, "H", DefaultHost, "hostname")
	set.StringVar(&f.host, "host", DefaultHost, "hostname")
	set.IntVar(&f.port, "P", DefaultPort, "port")
	set.IntVar(&f.port, "port", DefaultPort, "port")
	set.Var(&f.warning, "w", "warning limit")
	set.Var(&f.warning, "warning", "warning limit")
	set.Var(&f.critical, "c", "critical limit")
	set.Var(&f.critical, "critical", "critical limit")
	set.DurationVar(&f.timeout, "t", DefaultTimeout, "timeout for connect and query")
	set.DurationVar(&f.timeout, "timeout", DefaultTimeout, "timeout for connect and query")
	set.StringVar(&f.config, "config", "", "optional YAML config file")
	set.StringVar(&f.logFile, "log-file", "", "write diagnostics to a daily rotated file")
	set.BoolVar(&f.verbose, "v", false, "debug logging")
	set.BoolVar(&f.verbose, "verbose", false, "debug logging")
	return set
}

// canonical maps short flag names onto their long form.
var canonical = map[string]string{
	"H": "host",
	"P": "port",
	"w": "warning",
	"c": "critical",
	"t": "timeout",
	"v": "verbose",
}

// splitShortValues rewrites short options with an attached value, such as
// "-w10", into the "-w=10" form the flag package understands. Registered
// names, values of the preceding option and anything after "--" are kept.
func splitShortValues(args []string, set *flag.FlagSet) []string {
	out := make([]string, 0, len(args))
	wantValue := false

	for i, arg := range args {
		if wantValue {
			out = append(out, arg)
			wantValue = false
			continue
		}
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if len(arg) < 2 || arg[0] != '-' {
			out = append(out, arg)
			continue
		}

		name := strings.TrimPrefix(arg[1:], "-")
		doubleDash := name != arg[1:]
		name, _, hasValue := strings.Cut(name, "=")

		if fl := set.Lookup(name); fl != nil {
			out = append(out, arg)
			wantValue = !hasValue && !isBoolFlag(fl)
			continue
		}

		if !doubleDash && len(name) > 1 {
			if fl := set.Lookup(arg[1:2]); fl != nil && !isBoolFlag(fl) {
				out = append(out, "-"+arg[1:2]+"="+arg[2:])
				continue
			}
		}
		out = append(out, arg)
	}
	return out
}

func isBoolFlag(fl *flag.Flag) bool {
	b, ok := fl.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// Load parses args (without the program name) and resolves the final
// configuration. Usage output, including -h, is written to out.
func Load(args []string, out io.Writer) (*Config, error) {
	f := &flags{set: map[string]bool{}}
	fset := newFlagSet(out, f)
	if err := fset.Parse(splitShortValues(args, fset)); err != nil {
		return nil, err
	}
	if fset.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fset.Args())
	}
	fset.Visit(func(fl *flag.Flag) {
		name := fl.Name
		if long, ok := canonical[name]; ok {
			name = long
		}
		f.set[name] = true
	})

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}

	if f.config != "" {
		if err := loadFile(cfg, f.config); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, f)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fileConfig mirrors the YAML keys. Decoding is strict: a value of the wrong
// type or an unknown key is an error rather than a silent zero.
type fileConfig struct {
	Host       *string `koanf:"host"`
	Port       *int    `koanf:"port"`
	Warning    *int    `koanf:"warning"`
	Critical   *int    `koanf:"critical"`
	Username   string  `koanf:"username"`
	Password   string  `koanf:"password"`
	AuthSource string  `koanf:"auth_source"`
	Timeout    *string `koanf:"timeout"`
	LogFile    string  `koanf:"log_file"`
	LogLevel   string  `koanf:"log_level"`
}

func loadFile(cfg *Config, path string) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	var fc fileConfig
	err := k.UnmarshalWithConf("", &fc, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:      &fc,
			ErrorUnused: true,
		},
	})
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrConfigFile, path, err)
	}

	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.Warning != nil {
		cfg.Warning = fc.Warning
	}
	if fc.Critical != nil {
		cfg.Critical = fc.Critical
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("%w %s: timeout: %w", ErrConfigFile, path, err)
		}
		cfg.Timeout = d
	}
	cfg.Username = fc.Username
	cfg.Password = fc.Password
	cfg.AuthSource = fc.AuthSource
	cfg.LogFile = fc.LogFile
	cfg.LogLevel = fc.LogLevel
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("MONGO_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("MONGO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MONGO_PORT: %w", ErrInvalidPort)
		}
		cfg.Port = port
	}
	if v := os.Getenv("MONGO_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("MONGO_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("MONGO_AUTH_SOURCE"); v != "" {
		cfg.AuthSource = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return nil
}

func applyFlags(cfg *Config, f *flags) {
	if f.set["host"] {
		cfg.Host = f.host
	}
	if f.set["port"] {
		cfg.Port = f.port
	}
	if f.set["warning"] {
		cfg.Warning = f.warning.v
	}
	if f.set["critical"] {
		cfg.Critical = f.critical.v
	}
	if f.set["timeout"] {
		cfg.Timeout = f.timeout
	}
	if f.set["log-file"] {
		cfg.LogFile = f.logFile
	}
	if f.verbose {
		cfg.LogLevel = "debug"
	}
}

// Validate checks the invariants that must hold before any connection is
// attempted.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTime, c.Timeout)
	}
	if (c.Warning != nil && *c.Warning < 0) || (c.Critical != nil && *c.Critical < 0) {
		return ErrNegativeLimit
	}
	if c.Warning != nil && c.Critical != nil && *c.Warning >= *c.Critical {
		return fmt.Errorf("%w (warning %d, critical %d)", ErrLimitOrder, *c.Warning, *c.Critical)
	}
	return nil
}
