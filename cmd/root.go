package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/netstacklab/minnow/cmd/internal/demo"
	"github.com/netstacklab/minnow/cmd/internal/route"
	"github.com/netstacklab/minnow/cmd/internal/sniff"
	"github.com/netstacklab/minnow/printer"
	"github.com/netstacklab/minnow/util"
	"github.com/netstacklab/minnow/version"
)

var (
	debugFlag   bool
	verboseFlag int
)

var rootCmd = &cobra.Command{
	Use:           "minnow",
	Short:         "A small user-space TCP/IP stack.",
	Version:       version.CLIDisplayString(),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command, converting errors to process exit codes
// the way the CLI this project grew out of does.
func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		cmd.Println(cmd.UsageString())

		exitCode := 1
		var exitErr util.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode
		}
		printer.Stderr.Errorf("%s\n", err)
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "If set, outputs detailed information for debugging.")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase logging verbosity; repeatable.")
	viper.BindPFlag("verbose-level", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(demo.Cmd)
	rootCmd.AddCommand(route.Cmd)
	rootCmd.AddCommand(sniff.Cmd)
}
