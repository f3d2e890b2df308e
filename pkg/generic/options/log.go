package options

import (
	"encoding/json"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"k8s.io/component-base/config"
	"k8s.io/component-base/logs"
	"k8s.io/component-base/logs/registry"
	"k8s.io/klog/v2"
)

const (
	DefaultLogFormat   = "text"
	DefaultVerbosity   = 2
	DefaultFileMaxSize = 1800
)

type LoggingConfiguration struct {
	// Refer [Logs Options](https://github.com/kubernetes/component-base/blob/master/logs/options.go) for more information.
	config.LoggingConfiguration
	// File 日志文件, 为空时只输出到 stderr
	File string
	// FileMaxSize in megabytes, 0 means no limit.
	FileMaxSize uint64
}

func NewDefaultLoggingConfiguration() LoggingConfiguration {
	return LoggingConfiguration{
		LoggingConfiguration: config.LoggingConfiguration{
			Format:    DefaultLogFormat,
			Verbosity: DefaultVerbosity,
		},
		FileMaxSize: DefaultFileMaxSize,
	}
}

func (l *LoggingConfiguration) ValidateAndApply() error {
	o := logs.NewOptions()
	o.Config.Format = l.Format
	o.Config.Verbosity = l.Verbosity
	o.Config.VModule = l.VModule
	if err := o.ValidateAndApply(); err != nil {
		return err
	}
	return l.applyFile()
}

// applyFile redirects klog into File, keeping a copy on stderr.
func (l *LoggingConfiguration) applyFile() error {
	if len(l.File) == 0 {
		return nil
	}
	fs := flag.NewFlagSet("klog-file", flag.ContinueOnError)
	klog.InitFlags(fs)
	settings := map[string]string{
		"logtostderr":       "false",
		"alsologtostderr":   "true",
		"log_file":          l.File,
		"log_file_max_size": strconv.FormatUint(l.FileMaxSize, 10),
	}
	for name, value := range settings {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to set klog flag %s: %w", name, err)
		}
	}
	return nil
}

type marshalLoggingConfig struct {
	Format      string
	Verbosity   config.VerbosityLevel
	VModule     config.VModuleConfiguration
	File        string `json:",omitempty"`
	FileMaxSize uint64
}

func (l *LoggingConfiguration) MarshalJSON() ([]byte, error) {
	return json.Marshal(&marshalLoggingConfig{
		Format:      l.Format,
		Verbosity:   l.Verbosity,
		VModule:     l.VModule,
		File:        l.File,
		FileMaxSize: l.FileMaxSize,
	})
}

func (l *LoggingConfiguration) UnmarshalJSON(bytes []byte) error {
	in := &marshalLoggingConfig{FileMaxSize: l.FileMaxSize}
	if err := json.Unmarshal(bytes, in); err != nil {
		return err
	}
	l.Format = in.Format
	l.Verbosity = in.Verbosity
	l.VModule = in.VModule
	l.File = in.File
	l.FileMaxSize = in.FileMaxSize
	return nil
}

func (l *LoggingConfiguration) BindLoggingFlags(fs *pflag.FlagSet) {
	notHidden := map[string]bool{
		"v":              true,
		"vmodule":        true,
		"logging-format": true,
	}

	logsFs := pflag.NewFlagSet("", pflag.ContinueOnError)
	logs.BindLoggingFlags(&l.LoggingConfiguration, logsFs)
	logsFs.VisitAll(func(f *pflag.Flag) {
		if notHidden[f.Name] {
			if f.Name == "logging-format" {
				formats := fmt.Sprintf(`"%s"`, strings.Join(registry.LogRegistry.List(), `", "`))
				f.Usage = fmt.Sprintf("Sets the log format. Permitted formats: %s.", formats)
			}
			return
		}
		f.Hidden = true
	})

	fs.AddFlagSet(logsFs)
	fs.StringVar(&l.File, "log-file", l.File, "If non-empty, also write logs into this file.")
	fs.Uint64Var(&l.FileMaxSize, "log-file-max-size", l.FileMaxSize, "Maximum size of the log file in megabytes, 0 means unlimited.")
}
