package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasi-runner/engine"
	"github.com/wippyai/wasi-runner/errors"
	"github.com/wippyai/wasi-runner/runtime"
)

type runFlags struct {
	env        envVars
	dirs       dirs
	envAllow   []string
	listen     []string
	envInherit bool
	argv0      string
	configPath string
	cacheDir   string
	logLevel   string
	logFormat  string
	pages      uint32
}

func runCommand() *cobra.Command {
	var f runFlags

	command := &cobra.Command{
		Use:   "wasirun [flags] <module.wasm> [-- args...]",
		Short: "Run WASI preview1 command modules",
		Long: "wasirun loads a core WebAssembly module, gives it the wasi_snapshot_preview1\n" +
			"imports and runs its _start export. Arguments after -- are passed to the guest.",
		Args: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			switch {
			case len(args) == 0:
				return stderrors.New("expected a module path")
			case dash == -1 && len(args) > 1:
				return stderrors.New("guest arguments must follow --")
			case dash > 1:
				return stderrors.New("expected exactly one module path before --")
			case dash == 0:
				return stderrors.New("expected a module path before --")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(resolveLogLevel(f.logLevel, cmd.Flags().Changed("log-level")), f.logFormat)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			opts, err := f.options(cmd)
			if err != nil {
				return err
			}
			opts = append(opts,
				runtime.WithArgs(args[1:]...),
				runtime.WithStdio(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()),
				runtime.WithLogger(logger),
			)

			code, err := runModule(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	flags := command.Flags()
	flags.Var(&f.env, "env", "set a guest environment variable KEY=VALUE (repeatable)")
	flags.BoolVar(&f.envInherit, "env-inherit", true, "pass the host environment to the guest")
	flags.StringArrayVar(&f.envAllow, "env-allow", nil, "pass only the named host variable (repeatable, disables --env-inherit)")
	flags.Var(&f.dirs, "dir", "preopen a host directory as host[:guest][:ro] (repeatable, default .:/)")
	flags.StringVar(&f.argv0, "argv0", runtime.DefaultArgv0, "program name seen by the guest")
	flags.Uint32Var(&f.pages, "memory-limit-pages", 0, "maximum linear memory in 64KiB pages (0 = engine default)")
	flags.StringVar(&f.cacheDir, "cache-dir", "", "directory for the compilation cache")
	flags.StringArrayVar(&f.listen, "listen", nil, "expose a TCP listener on addr to the guest (repeatable)")
	flags.StringVar(&f.configPath, "config", "", "read settings from a JSON file; flags override it")
	flags.StringVar(&f.logLevel, "log-level", "warn", "log level: debug, info, warn or error (env "+logLevelEnv+")")
	flags.StringVar(&f.logFormat, "log-format", "console", "log format: console or json")
	flags.SetInterspersed(true)

	return command
}

// options turns the config file and the explicitly set flags into runtime
// options. Flags left at their defaults do not override the file.
func (f *runFlags) options(cmd *cobra.Command) ([]runtime.Option, error) {
	var opts []runtime.Option
	if f.configPath != "" {
		cfg, err := runtime.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, runtime.WithConfig(cfg))
	}

	changed := cmd.Flags().Changed
	if changed("argv0") {
		opts = append(opts, runtime.WithArgv0(f.argv0))
	}
	if changed("env-inherit") {
		opts = append(opts, runtime.WithEnvInherit(f.envInherit))
	}
	if changed("env-allow") {
		opts = append(opts, runtime.WithEnvAllow(f.envAllow...))
	}
	for k, v := range f.env.values {
		opts = append(opts, runtime.WithEnv(k, v))
	}
	if changed("dir") {
		opts = append(opts, runtime.WithPreopens(f.dirs.values...))
	}
	if changed("memory-limit-pages") {
		opts = append(opts, runtime.WithMemoryLimitPages(f.pages))
	}
	if changed("cache-dir") {
		opts = append(opts, runtime.WithCacheDir(f.cacheDir))
	}
	for _, addr := range f.listen {
		opts = append(opts, runtime.WithListen(addr))
	}
	return opts, nil
}

// runModule runs path to completion. An interrupt closes the guest.
func runModule(ctx context.Context, path string, opts ...runtime.Option) (int32, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	wasm, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Load("read module "+path, err)
	}

	opts = append(opts, runtime.WithCloseOnContextDone(true))
	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := rt.Close(context.Background()); cerr != nil {
			engine.Logger().Warn("close runtime", zap.Error(cerr))
		}
	}()

	if err := rt.Load(ctx, wasm); err != nil {
		return 0, err
	}
	engine.Logger().Info("running module",
		zap.String("path", path),
		zap.Strings("argv", rt.Config().Argv()))
	return rt.Run(ctx)
}
