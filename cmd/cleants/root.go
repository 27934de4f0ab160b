package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jptrs93/cleants/internal/config"
	"github.com/jptrs93/cleants/internal/generate"
	tsgen "github.com/jptrs93/cleants/internal/generate/ts"
	"github.com/jptrs93/cleants/internal/logger"
	"github.com/jptrs93/cleants/internal/parser"
)

type rootOptions struct {
	configPath string
	dryRun     bool
	v          *viper.Viper
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.New()}

	cmd := &cobra.Command{
		Use:   "cleants [flags] file.proto...",
		Short: "Generate TypeScript modules from IDL files",
		Long: `Generate one TypeScript module per IDL file, including every file the
given files import.

Each module is written to <out>/<namespace>/<name>.ts, where the namespace
comes from the cleants.ts_namespace file option or the package name.

Examples:
  cleants --out gen api/user.proto
  cleants --source idl --out gen user.proto account.proto
  cleants --collect-errors --parallelism 4 idl/*.proto
  cleants --dry-run user.proto`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ./cleants.yaml)")
	flags.String("out", "", "output directory")
	flags.String("root", "", "directory a relative output directory is resolved against (default: working directory)")
	flags.String("source", "", "directory includes are resolved against first")
	flags.StringSlice("proto_path", nil, "additional import path (repeatable)")
	flags.String("runtime-module", "", "module every generated file imports runtime support from")
	flags.Int("parallelism", 0, "number of top-level files generated concurrently")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console, json")
	cmd.Flags().Bool("collect-errors", false, "generate every file and report all failures instead of stopping at the first")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list the files that would be written without writing them")

	bindings := map[string]string{
		config.KeyOutDir:        "out",
		config.KeyRootDir:       "root",
		config.KeySourceDir:     "source",
		config.KeyImportPaths:   "proto_path",
		config.KeyRuntimeModule: "runtime-module",
		config.KeyParallelism:   "parallelism",
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
	}
	for key, flag := range bindings {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(newConfigCmd(opts))
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.v, opts.configPath)
			if err != nil {
				return err
			}
			out, err := cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func runGenerate(cmd *cobra.Command, opts *rootOptions, args []string) error {
	if collect, _ := cmd.Flags().GetBool("collect-errors"); collect {
		opts.v.Set(config.KeyFailurePolicy, generate.Collect.String())
	}
	cfg, err := config.Load(opts.v, opts.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	p := parser.Parser{
		SourceDir:    cfg.SourceDir,
		ImportPaths:  cfg.ImportPaths,
		RuntimeAlias: cfg.Runtime.Alias,
	}
	files, err := p.Parse(cmd.Context(), args)
	if err != nil {
		return err
	}
	log.Debug("parsed files", zap.Int(logger.FieldCount, len(files)))

	gen := tsgen.NewGenerator(generate.Options{
		RootDir:       cfg.RootDir,
		OutDir:        cfg.OutDir,
		SourceDir:     cfg.SourceDir,
		FailurePolicy: cfg.FailurePolicy(),
		Parallelism:   cfg.Generate.Parallelism,
		Logger:        log,
	}, cfg.Runtime.Module, cfg.Runtime.Alias)

	rendered, genErr := gen.GenerateFile(cmd.Context(), files)
	var batch *generate.BatchError
	if genErr != nil && !errors.As(genErr, &batch) {
		return genErr
	}

	outputs, err := generate.CollectOutputs(rendered)
	if err != nil {
		return err
	}
	if opts.dryRun {
		for _, out := range outputs {
			fmt.Fprintln(cmd.OutOrStdout(), out.Path)
		}
	} else if err := generate.WriteFiles(outputs); err != nil {
		return err
	}
	log.Info("generation finished",
		zap.String(logger.FieldOutDir, gen.Options().OutDir),
		zap.Int(logger.FieldCount, len(outputs)),
		zap.Bool("dry_run", opts.dryRun),
	)
	return genErr
}
