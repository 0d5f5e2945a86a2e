package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version and Commit are set at build time via -ldflags.
//
//	go build -ldflags "-X github.com/Makepad-fr/tada/internal/cli.Version=v0.3.0
//	  -X github.com/Makepad-fr/tada/internal/cli.Commit=48cae1d"
var (
	Version = ""
	Commit  = ""
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and commit hash",
		Args:  usageArgs(cobra.NoArgs),
		// No config or store needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(a.streams.Out, versionLine())
		},
	}
}

func version() string {
	if Version == "" {
		return "dev"
	}
	return Version
}

func versionLine() string {
	c := Commit
	if c == "" {
		c = commitFromBuildInfo()
	}
	if c != "" {
		return fmt.Sprintf("tada %s (%s)", version(), shortCommit(c))
	}
	return "tada " + version()
}

// commitFromBuildInfo extracts vcs.revision from Go's embedded build info.
func commitFromBuildInfo() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}
