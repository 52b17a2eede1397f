// Package cli wires the cobra command tree, binds flags through viper,
// and drives one supervised run: parsing the input list, constructing
// the Monitor and Scheduler, registering signal handlers, and printing
// the end-of-run summary.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/Yurzi/cirno/internal/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	configFile  string
	noColorFlag bool
	rootCmd     = &cobra.Command{
		Use:   "cirno",
		Short: "A local batch task supervisor for overnight and multi-hour compute runs",
		Long: `cirno reads a static list of shell commands and runs them as child
processes under a concurrency- and health-bounded scheduler, bounding
parallelism by both a configured worker cap and live system health
(memory, load average, optional GPU free memory), enforcing per-task
time limits via a graduated shutdown protocol, and writing a final
report mapping each task to its terminal status.`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.cirno.yaml)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "disable colored output")
}

func initConfig() {
	SetNoColor(noColorFlag)

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Could not find home directory: %v\n", err)
		} else {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".cirno")
		}
	}

	viper.SetEnvPrefix("CIRNO")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}

	bindAllFlags()

	if viper.GetBool("run.with_config_watch") {
		viper.WatchConfig()
	}
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersion sets the version string cobra reports for --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// bindAllFlags automatically binds every command's flags to viper so a
// config file or CIRNO_ environment variable can override any default.
func bindAllFlags() {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(func(flag *pflag.Flag) {
			viperKey := flag.Name
			if cmd.Name() != "cirno" {
				viperKey = cmd.Name() + "." + flag.Name
			}
			if err := viper.BindPFlag(viperKey, flag); err != nil {
				panic(fmt.Sprintf("Failed to bind flag %s: %v", viperKey, err))
			}
		})
	})
}

func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, child := range cmd.Commands() {
		walkCommands(child, fn)
	}
}

// buildConfig assembles a types.Config from the run command's bound
// flags, falling back to internal/types' documented defaults where
// viper has no value.
func buildConfig(inputList string) *types.Config {
	return &types.Config{
		InputList:        inputList,
		RunDir:           viper.GetString("run.run-dir"),
		Workers:          viper.GetInt("run.workers"),
		ForceWorkers:     viper.GetInt("run.force-workers"),
		Timeout:          durationFromSeconds(viper.GetFloat64("run.timeout")),
		TimeoutWait:      durationFromSeconds(viper.GetFloat64("run.timeout-wait")),
		TickRate:         viper.GetFloat64("run.tick-rate"),
		HighMemThreshold: viper.GetFloat64("run.high-mem-thres"),
		LowMemThreshold:  viper.GetFloat64("run.low-mem-thres"),
		PerTaskMem:       uint64(viper.GetInt64("run.per-task-mem")),
		ReservedMem:      uint64(viper.GetInt64("run.reversed-mem")),
		LoadAvgThreshold: viper.GetFloat64("run.load-avg-thres"),
		WithGPU:          viper.GetBool("run.with-gpu"),
		GPUMemThresh:     viper.GetFloat64("run.gpu-mem-thres"),
		WithTaskName:     viper.GetBool("run.with-task-name"),
	}
}
