// SPDX-License-Identifier: MIT
package cmd

import (
	"radar/internal/config"
	"radar/pkg/build"

	"github.com/spf13/cobra"
)

// Subcommands recognised by ParseArgs.
const (
	CommandProcess = "process"
	CommandReplica = "replica"
	CommandVersion = "version"
)

// ParseArgs parses args (without the program name) into Options. A nil
// Options with a nil error means help was printed and there is nothing to do.
func ParseArgs(args []string) (*config.Options, error) {
	buildInfo := build.GetBuildFlags()
	options := config.NewOptions()

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.PersistentFlags().StringVarP(&options.ConfigPath, "config", "f", config.DefaultConfigPath,
		"YAML configuration file. Default searches radar.yaml, then config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", config.DefaultVerbosity,
		"Show verbose output")

	// Process command
	processCmd := &cobra.Command{
		Use:   CommandProcess,
		Short: "Load raw traces, run the configured pipeline and publish the radargram",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandProcess
		},
	}
	processCmd.Flags().StringVarP(&options.InputFile, "input", "i", config.DefaultInputFile,
		"WAV capture to process (2 channels = I/Q, 1 channel = real RF)")
	processCmd.Flags().BoolVar(&options.Synthetic, "synthetic", config.DefaultSynthetic,
		"Process a simulated radargram instead of a capture")
	processCmd.Flags().StringVarP(&options.OutputFile, "output", "o", config.DefaultOutputFile,
		"Record the result to a WAV file, e.g. radargram-DD-MM-YYYY-HHMMSS.wav")
	processCmd.Flags().IntVarP(&options.Workers, "workers", "w", config.DefaultWorkers,
		"Traces processed concurrently per stage (0 = GOMAXPROCS)")
	processCmd.Flags().StringVar(&options.WSAddr, "ws-addr", config.DefaultWSAddr,
		"Serve the result to websocket clients on this address (/ws)")
	processCmd.Flags().StringVar(&options.UDPTarget, "udp", config.DefaultUDPTarget,
		"Send trace packets to host:port")
	processCmd.Flags().StringVar(&options.MetricsAddr, "metrics-addr", config.DefaultMetricsAddr,
		"Serve Prometheus metrics on this address (/metrics)")
	rootCmd.AddCommand(processCmd)

	// Replica command
	replicaCmd := &cobra.Command{
		Use:   CommandReplica,
		Short: "Synthesize the chirp replica and report its matched-filter response",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandReplica
		},
	}
	replicaCmd.Flags().Float64VarP(&options.SampleRate, "sample-rate", "s", 0,
		"Sample rate, measured in Hertz (Hz)")
	replicaCmd.Flags().Float64Var(&options.StartFrequency, "start-frequency", 0,
		"Chirp start frequency (Hz)")
	replicaCmd.Flags().Float64Var(&options.Bandwidth, "bandwidth", 0,
		"Chirp bandwidth (Hz)")
	replicaCmd.Flags().Float64Var(&options.Duration, "duration", 0,
		"Chirp duration (s)")
	replicaCmd.Flags().StringVar(&options.Polarity, "polarity", "",
		"Sweep direction: up or down")
	replicaCmd.Flags().IntVar(&options.ReplicaLength, "length", 0,
		"Replica length in samples (0 = natural pulse length)")
	replicaCmd.Flags().StringVarP(&options.OutputFile, "output", "o", config.DefaultOutputFile,
		"Write the replica to a two-channel I/Q WAV file")
	rootCmd.AddCommand(replicaCmd)

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandVersion,
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
		},
	})

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options.Command == "" {
		return nil, nil
	}
	return options, nil
}
