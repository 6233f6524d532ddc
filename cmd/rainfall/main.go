// Command rainfall loads the California winter extreme rainfall data,
// inspects it, lists the cross-validation folds and evaluates a workflow.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

// envConfig holds the defaults taken from the environment; flags override
// them.
type envConfig struct {
	Path     string `env:"RAINFALL_PATH,default=./"`
	TestPath string `env:"RAINFALL_TEST_PATH,default=./data"`
	Workers  int    `env:"RAINFALL_WORKERS,default=0"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var env envConfig
	if err := envconfig.Process(ctx, &env); err != nil {
		klog.Fatalf("processing environment: %v", err)
	}

	rootCmd := newRootCmd(env)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func newRootCmd(env envConfig) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rainfall",
		Short: "California winter extreme rainfall prediction",
		Long: `Load the California winter extreme rainfall data set, list its
cross-validation folds and evaluate a prediction workflow.

Data roots default to the environment:
- RAINFALL_PATH (default ./), the training root
- RAINFALL_TEST_PATH (default ./data), the test root
- RAINFALL_WORKERS (default 0, one per CPU)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.AddCommand(
		newInspectCmd(env),
		newFoldsCmd(env),
		newEvaluateCmd(env),
	)
	return rootCmd
}
