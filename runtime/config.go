package runtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-runner/engine"
	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/resource"
)

// DefaultArgv0 is the program name the guest sees in argv[0].
const DefaultArgv0 = "this.wasm"

var validate = validator.New()

// Preopen maps a host directory into the guest.
type Preopen struct {
	HostPath  string `json:"host_path" validate:"required" jsonschema:"description=Host directory to expose"`
	GuestPath string `json:"guest_path" validate:"required,startswith=/" jsonschema:"description=Absolute guest path"`
	ReadOnly  bool   `json:"read_only,omitempty" jsonschema:"description=Reject writes with EROFS"`
}

// Config describes how a module is run. The zero value is not usable; start
// from DefaultConfig or New.
type Config struct {
	Stdin  io.Reader   `json:"-" validate:"-"`
	Stdout io.Writer   `json:"-" validate:"-"`
	Stderr io.Writer   `json:"-" validate:"-"`
	Logger *zap.Logger `json:"-" validate:"-"`

	// ExitFunc receives proc_exit codes. Nil terminates the host process.
	ExitFunc engine.ExitFunc `json:"-" validate:"-"`

	// Listeners are exposed after the preopens for sock_accept.
	Listeners []net.Listener `json:"-" validate:"-"`

	// Observers see descriptor creation, drops and renumbering.
	Observers []resource.Observer `json:"-" validate:"-"`

	// Environ is the host environment consulted when EnvInherit or EnvAllow
	// is set. Nil means os.Environ().
	Environ []string `json:"-" validate:"-"`

	Argv0 string   `json:"argv0" validate:"required" jsonschema:"default=this.wasm"`
	Args  []string `json:"args,omitempty" jsonschema:"description=Arguments after argv[0]"`

	Env        map[string]string `json:"env,omitempty" validate:"dive,keys,required,excludes==,endkeys"`
	EnvInherit bool              `json:"env_inherit" jsonschema:"default=true"`
	EnvAllow   []string          `json:"env_allow,omitempty" validate:"dive,required,excludes=="`

	Preopens []Preopen `json:"preopens,omitempty" validate:"dive"`
	Listen   []string  `json:"listen,omitempty" validate:"dive,hostname_port" jsonschema:"description=TCP addresses to listen on"`

	CacheDir           string `json:"cache_dir,omitempty"`
	MemoryLimitPages   uint32 `json:"memory_limit_pages,omitempty" validate:"lte=65536"`
	CloseOnContextDone bool   `json:"close_on_context_done,omitempty"`
	MaxFiles           int    `json:"max_files,omitempty" validate:"gte=0"`
}

// DefaultConfig inherits the host environment and stdio and preopens the
// working directory as "/".
func DefaultConfig() *Config {
	return &Config{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Argv0:      DefaultArgv0,
		EnvInherit: true,
		Preopens:   []Preopen{{HostPath: ".", GuestPath: "/"}},
	}
}

// Option configures a Runtime.
type Option func(*Config)

// WithArgv0 sets argv[0].
func WithArgv0(name string) Option {
	return func(c *Config) { c.Argv0 = name }
}

// WithArgs appends guest arguments after argv[0].
func WithArgs(args ...string) Option {
	return func(c *Config) { c.Args = append(c.Args, args...) }
}

// WithEnv sets an explicit variable. Explicit variables override inherited ones.
func WithEnv(key, value string) Option {
	return func(c *Config) {
		if c.Env == nil {
			c.Env = make(map[string]string)
		}
		c.Env[key] = value
	}
}

// WithEnvInherit controls whether the whole host environment is passed through.
func WithEnvInherit(inherit bool) Option {
	return func(c *Config) { c.EnvInherit = inherit }
}

// WithEnvAllow passes through only the named host variables. It implies
// WithEnvInherit(false).
func WithEnvAllow(names ...string) Option {
	return func(c *Config) {
		c.EnvInherit = false
		c.EnvAllow = append(c.EnvAllow, names...)
	}
}

// WithEnviron replaces the host environment consulted for inheritance.
func WithEnviron(environ []string) Option {
	return func(c *Config) { c.Environ = environ }
}

// WithPreopens replaces the preopened directories. No preopens is allowed.
func WithPreopens(preopens ...Preopen) Option {
	return func(c *Config) { c.Preopens = preopens }
}

// WithStdio sets the guest's standard streams. Nil leaves a stream unchanged.
func WithStdio(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(c *Config) {
		if stdin != nil {
			c.Stdin = stdin
		}
		if stdout != nil {
			c.Stdout = stdout
		}
		if stderr != nil {
			c.Stderr = stderr
		}
	}
}

// WithListener exposes l to the guest.
func WithListener(l net.Listener) Option {
	return func(c *Config) { c.Listeners = append(c.Listeners, l) }
}

// WithObserver subscribes o to descriptor lifecycle events.
func WithObserver(o resource.Observer) Option {
	return func(c *Config) { c.Observers = append(c.Observers, o) }
}

// WithListen opens a TCP listener on addr when the runtime is created.
func WithListen(addr string) Option {
	return func(c *Config) { c.Listen = append(c.Listen, addr) }
}

// WithExitFunc installs a proc_exit hook. When the hook returns, Run reports
// Exited with the guest's code instead of the host process exiting.
func WithExitFunc(fn engine.ExitFunc) Option {
	return func(c *Config) { c.ExitFunc = fn }
}

// WithLogger sets the logger for the runtime and its engine.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMemoryLimitPages caps linear memory, in 64KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) { c.MemoryLimitPages = pages }
}

// WithCacheDir enables the on-disk compilation cache.
func WithCacheDir(dir string) Option {
	return func(c *Config) { c.CacheDir = dir }
}

// WithCloseOnContextDone interrupts the guest when the Run context ends.
func WithCloseOnContextDone(enabled bool) Option {
	return func(c *Config) { c.CloseOnContextDone = enabled }
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg *Config) Option {
	return func(c *Config) {
		if cfg != nil {
			*c = *cfg
		}
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "invalid config")
	}
	return nil
}

// Argv returns argv[0] followed by the guest arguments.
func (c *Config) Argv() []string {
	return append([]string{c.Argv0}, c.Args...)
}

// Environment resolves the guest environment: the inherited or allowed host
// variables, then the explicit ones on top.
func (c *Config) Environment() map[string]string {
	environ := c.Environ
	if environ == nil {
		environ = os.Environ()
	}

	allowed := make(map[string]bool, len(c.EnvAllow))
	for _, name := range c.EnvAllow {
		allowed[name] = true
	}

	env := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if c.EnvInherit || allowed[k] {
			env[k] = v
		}
	}
	for k, v := range c.Env {
		env[k] = v
	}
	return env
}

// EnvironmentList returns Environment as sorted KEY=VALUE strings.
func (c *Config) EnvironmentList() []string {
	env := c.Environment()
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// LoadConfig reads a JSON configuration file on top of DefaultConfig and
// validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read config "+path)
	}
	return ParseConfig(data)
}

// ParseConfig decodes JSON configuration on top of DefaultConfig. Unknown
// fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{ExpandedStruct: true}
	schema := reflector.Reflect(&Config{})
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
