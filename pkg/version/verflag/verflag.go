package verflag

import (
	"fmt"
	"os"
	"strconv"

	"emssimulate/pkg/version"
	"github.com/spf13/pflag"
)

type versionValue int

const (
	VersionFalse versionValue = 0
	VersionTrue  versionValue = 1
	VersionRaw   versionValue = 2
)

const (
	strRawVersion   = "raw"
	versionFlagName = "version"
)

func (v *versionValue) IsBoolFlag() bool {
	return true
}

func (v *versionValue) Get() interface{} {
	return *v
}

func (v *versionValue) Set(s string) error {
	if s == strRawVersion {
		*v = VersionRaw
		return nil
	}
	boolVal, err := strconv.ParseBool(s)
	if boolVal {
		*v = VersionTrue
	} else {
		*v = VersionFalse
	}
	return err
}

func (v *versionValue) String() string {
	if *v == VersionRaw {
		return strRawVersion
	}
	return fmt.Sprintf("%v", *v == VersionTrue)
}

func (v *versionValue) Type() string {
	return "version"
}

var versionFlag = VersionFalse

// AddFlags registers --version, "--version=raw" prints every build field.
func AddFlags(fs *pflag.FlagSet) {
	fs.Var(&versionFlag, versionFlagName, "Print version information and quit")
	fs.Lookup(versionFlagName).NoOptDefVal = "true"
}

// PrintAndExitIfRequested prints the version and exits when --version was given.
func PrintAndExitIfRequested() {
	switch versionFlag {
	case VersionRaw:
		fmt.Printf("%#v\n", version.Get())
		os.Exit(0)
	case VersionTrue:
		fmt.Printf("emssimulate %s\n", version.Get())
		os.Exit(0)
	}
}
