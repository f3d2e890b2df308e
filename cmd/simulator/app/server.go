package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"emssimulate/cmd/simulator/options"
	"emssimulate/pkg/generic"
	baseoptions "emssimulate/pkg/generic/options"
	"emssimulate/pkg/version"
	"emssimulate/pkg/version/verflag"
	"emssimulate/pkg/web"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

const (
	ComponentSimulator = "ems-simulator"
)

func NewSimulatorCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentSimulator, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:                ComponentSimulator,
		Long:               `The ems simulator serves modbus, iec104 and dlt645 points over the wire and manages them through a REST api.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			// check if there are non-flag arguments in the command line
			cmds := cleanFlagSet.Args()
			if len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				os.Exit(1)
			}

			// short-circuit on help
			baseoptions.PrintHelpAndExitIfRequested(cmd, cleanFlagSet)

			// short-circuit on defaultconfig
			baseoptions.PrintDefaultConfigAndExitIfRequested(options.NewDefaultOptions(), cleanFlagSet)

			// short-circuit on verflag
			verflag.PrintAndExitIfRequested()

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return err
			}

			if errs := options.Validate(o); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}

			// To help debugging, immediately log version
			klog.Infof("Version: %+v", version.Get())
			return run(o)
		},
	}

	verflag.AddFlags(cleanFlagSet)
	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func run(o *options.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := o.Config(ctx)
	if err != nil {
		return err
	}

	server, err := web.NewServer(generic.Default(), o.Port, c)
	if err != nil {
		return err
	}

	exit, err := server.Serve()
	if err != nil {
		return err
	}
	klog.V(1).InfoS("Server started", "port", o.Port)
	// Wait for interrupt signal to gracefully shutdown the server
	exitCh := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	signal.Notify(exitCh, syscall.SIGINT, syscall.SIGTERM)
	<-exitCh
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), o.Wait)
	defer shutdownCancel()

	exit(shutdownCtx)
	return nil
}
