package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"gravmag/pkg/config"
	"gravmag/pkg/forward"
)

const (
	envPrefix = "GRAVMAG"

	defaultConfigFile = "gravmag.yaml"

	configFlagName     = "config"
	workersFlagName    = "workers"
	axisFlagName       = "axis"
	logFileFlagName    = "log-file"
	verboseFlagName    = "verbose"
	noProgressFlagName = "no-progress"

	configPathKey  = "config"
	workersKey     = "processing.num_jobs"
	axisKey        = "processing.parallel_axis"
	logFilenameKey = "log.filename"
	logVerboseKey  = "log.verbose"
	noProgressKey  = "processing.no_progress"

	// skipSetup marks commands that run without a configuration.
	skipSetup = "skip-setup"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *slog.Logger
	console *logrus.Logger
	closers []func() error
}

const rootLongDescription = `gravmag computes gravity and magnetic fields of prisms, point masses and
tesseroids, and interpolates scattered potential-field data with
equivalent sources.

Settings come from a YAML file (--config, default gravmag.yaml), environment
variables prefixed with GRAVMAG_ and command line flags, in increasing order
of precedence.`

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()
	a.v.SetDefault(configPathKey, defaultConfigFile)

	cmd := &cobra.Command{
		Use:           "gravmag",
		Short:         "Gravity and magnetic forward modelling and equivalent sources",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipSetup] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	a.configureRootFlags(cmd)
	cmd.AddCommand(
		newForwardCmd(a),
		newFitCmd(a),
		newPredictCmd(a),
		newModelsCmd(a),
		newContinueCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

func (a *app) configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String(configFlagName, defaultConfigFile, "YAML configuration file")
	a.bindFlag(flags.Lookup(configFlagName), configPathKey)

	flags.IntP(workersFlagName, "j", 0, "number of workers (0 uses every CPU)")
	a.bindFlag(flags.Lookup(workersFlagName), workersKey)

	flags.String(axisFlagName, forward.AxisPoints.String(), "parallelize over \"points\" or \"sources\"")
	a.bindFlag(flags.Lookup(axisFlagName), axisKey)

	flags.String(logFileFlagName, "", "log file (overrides log.filename)")
	a.bindFlag(flags.Lookup(logFileFlagName), logFilenameKey)

	flags.BoolP(verboseFlagName, "v", false, "debug logging")
	a.bindFlag(flags.Lookup(verboseFlagName), logVerboseKey)

	flags.Bool(noProgressFlagName, false, "never draw progress bars")
	a.bindFlag(flags.Lookup(noProgressFlagName), noProgressKey)
}

// bindFlag wires a flag to a viper key so env values feed the flag.
func (a *app) bindFlag(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}
	cobra.CheckErr(a.v.BindPFlag(key, flag))
}

// setup loads the configuration, applies flag and env overrides and opens
// the loggers.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.v.GetString(configPathKey))
	if err != nil {
		return err
	}
	if a.v.IsSet(workersKey) {
		cfg.Processing.NumJobs = a.v.GetInt(workersKey)
	}
	if a.v.IsSet(axisKey) {
		cfg.Processing.ParallelAxis = a.v.GetString(axisKey)
	}
	if a.v.GetString(logFilenameKey) != "" {
		cfg.Log.Filename = a.v.GetString(logFilenameKey)
	}
	if a.v.GetBool(logVerboseKey) {
		cfg.Log.Verbose = true
	}
	if a.v.GetBool(noProgressKey) {
		cfg.Processing.Progressbar = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger, closeLog := configureLogger(cfg)
	a.logger = logger
	a.closers = append(a.closers, closeLog)
	a.console = newConsoleLogger(cmd.ErrOrStderr(), cfg.Log.Verbose)

	a.logger.Debug("configuration loaded", "path", a.v.GetString(configPathKey),
		"workers", cfg.Processing.NumJobs, "axis", cfg.Processing.ParallelAxis)
	return nil
}

func (a *app) close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// engine returns the forward options for one stage, with a progress bar
// labelled label when the console is a terminal.
func (a *app) engine(cmd *cobra.Command, label string) forward.Options {
	var progress forward.ProgressFunc
	if bar := newProgressBar(cmd.ErrOrStderr(), label); bar != nil {
		progress = bar.Update
	}
	return a.cfg.ForwardOptions(a.logger, progress)
}
