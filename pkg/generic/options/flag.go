package options

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	flagHelp          = "help"
	flagDefaultConfig = "default-config"
)

// Optioner command options that can be loaded from a config file and overridden by flags.
type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

type BaseOptions struct {
	ConfigFile string `json:"-"`
	Logging    LoggingConfiguration
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.addConfigFile(fs)
	bo.Logging.BindLoggingFlags(fs)
	addHelpAndUsage(cmd, fs)
	fs.Bool(flagDefaultConfig, false, "Print the default configuration as yaml and exit, use it as a template for --config.")
}

func (bo *BaseOptions) addConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, "config", "c", bo.ConfigFile, "Load the initial configuration from this yaml file, relative paths start at the working directory. Command-line flags override values from the file.")
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

func boolFlag(fs *pflag.FlagSet, name string) bool {
	v, err := fs.GetBool(name)
	if err != nil {
		klog.InfoS("Flag is non-bool, programmer error, please correct", "flag", name)
		os.Exit(1)
	}
	return v
}

func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	if boolFlag(fs, flagHelp) {
		_ = cmd.Help()
		os.Exit(0)
	}
}

func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	if !boolFlag(fs, flagDefaultConfig) {
		return
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal default config to yaml")
		os.Exit(1)
	}
	fmt.Println("# Default configuration, copy it and pass the copy with --config.")
	fmt.Printf("\n%s\n", data)
	os.Exit(0)
}

func addHelpAndUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.BoolP(flagHelp, "h", false, fmt.Sprintf("help for %s", cmd.Name()))

	// cobra's default usage and help funcs would pull the global flags into the output
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// ParseAndApplyConfigFile loads the config file into o, then parses args again so that
// flags keep precedence over the file.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	if len(o.GetBaseOptions().ConfigFile) == 0 {
		return nil
	}
	if err := LoadConfigFile(o, o.GetBaseOptions().ConfigFile); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	o.AddFlags(fs)
	o.GetBaseOptions().addConfigFile(fs)
	o.GetBaseOptions().Logging.BindLoggingFlags(fs)
	return fs.Parse(args)
}

// LoadConfigFile decodes the yaml file at path into out, environment variables in the
// file are expanded first.
func LoadConfigFile(out interface{}, path string) error {
	configFilePath, err := filepath.Abs(path)
	if err != nil {
		klog.ErrorS(err, "Failed to load config file", "file", path)
		return err
	}
	data, err := os.ReadFile(configFilePath)
	if err != nil {
		klog.ErrorS(err, "Failed to read config file", "file", configFilePath)
		return err
	}
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), out); err != nil {
		klog.ErrorS(err, "Failed to unmarshal config file", "file", configFilePath)
		return err
	}
	return nil
}
