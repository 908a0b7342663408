package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/xyproto/randomstring"
)

const runIDLen = 8

// Args is the small set of flags the four entry points accept. The
// scenario file path itself is a constant (§6 of the scheduling spec)
// and is intentionally absent here.
type Args struct {
	ConfigPath string
	Car        int
	Help       bool
	Version    bool
}

// ProcessCmdArgs parses os.Args, printing help/version and exiting in the
// same style as the rest of the building tooling.
func ProcessCmdArgs(programName string) Args {
	help := flag.Bool("help", false, "Show help")
	version := flag.Bool("version", false, "Show version")
	configPath := flag.String("config", "", "Path to a building YAML config override")
	car := flag.Int("car", -1, "Restrict to a single car (elevator entry point only)")

	flag.Parse()

	if *version {
		fmt.Println("Version:", buildVersion)
		os.Exit(0)
	}

	if *help {
		fmt.Printf("Usage: ./%s [OPTIONS]\n", programName)
		fmt.Println("Building elevator dispatch simulation")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	return Args{
		ConfigPath: *configPath,
		Car:        *car,
		Help:       *help,
		Version:    *version,
	}
}

const buildVersion = "dev"

const runIDEnvVar = "ELEVSIM_RUN_ID"

// RunID stamps every process in a simulation run with a
// human-distinguishable random token, so the scheduler's and a car's log
// lines sharing
// one `run` field can be grepped together across processes. A launcher
// that starts all four binaries together should export ELEVSIM_RUN_ID so
// every process picks up the same value; standalone runs fall back to a
// freshly generated one.
func RunID() string {
	if v := os.Getenv(runIDEnvVar); v != "" {
		return v
	}
	return randomstring.EnglishFrequencyString(runIDLen)
}
