// Package config binds the aquaserver command's flags, environment
// variables and optional config file into a single Config struct, the
// way the teacher's cmd/root.go binds its persistent flags through
// viper.
package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/phetsims/aqua/internal/cycler"
	"github.com/phetsims/aqua/internal/dispatcher"
)

// Config holds every runtime-tunable setting of the aquaserver process.
type Config struct {
	ReposRoot    string
	SelfRepo     string
	KnownRepos   []string
	RemoteBase   string
	RemoteBranch string

	SnapshotsRoot string
	RingStorePath string

	PollInterval time.Duration
	ListenAddr   string

	Debug bool
}

// BindFlags registers every flag Config reads on cmd and binds it through
// viper so it can also be supplied via environment variable or config
// file, following the teacher's mustBind/viper.BindPFlag pattern.
func BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String("repos-root", ".", "common parent directory containing every sibling repository")
	flags.String("self-repo", "aqua", "repository name to exclude from every repository enumeration")
	flags.StringSlice("known-repos", nil, "repository names expected to be checked out under --repos-root")
	flags.String("remote-base", "https://github.com/phetsims", "base URL new repositories are cloned from")
	flags.String("remote-branch", "origin/main", "tracking branch checked for staleness")

	flags.String("snapshots-root", "ct-snapshots", "directory under which snapshot materializations are written")
	flags.String("ring-store", "", "optional bbolt file persisting ring metadata across restarts (disabled if empty)")

	flags.Duration("poll-interval", cycler.DefaultPollInterval, "how often the snapshot cycler checks repository staleness")
	flags.String("listen", ":45366", "address the dispatcher HTTP server listens on")

	flags.Bool("debug", false, "enable debug-level logging")

	mustBind(viper.BindPFlag("repos-root", flags.Lookup("repos-root")))
	mustBind(viper.BindPFlag("self-repo", flags.Lookup("self-repo")))
	mustBind(viper.BindPFlag("known-repos", flags.Lookup("known-repos")))
	mustBind(viper.BindPFlag("remote-base", flags.Lookup("remote-base")))
	mustBind(viper.BindPFlag("remote-branch", flags.Lookup("remote-branch")))
	mustBind(viper.BindPFlag("snapshots-root", flags.Lookup("snapshots-root")))
	mustBind(viper.BindPFlag("ring-store", flags.Lookup("ring-store")))
	mustBind(viper.BindPFlag("poll-interval", flags.Lookup("poll-interval")))
	mustBind(viper.BindPFlag("listen", flags.Lookup("listen")))
	mustBind(viper.BindPFlag("debug", flags.Lookup("debug")))
}

// FromViper reads the bound settings back out of viper's global instance.
func FromViper() Config {
	return Config{
		ReposRoot:     viper.GetString("repos-root"),
		SelfRepo:      viper.GetString("self-repo"),
		KnownRepos:    viper.GetStringSlice("known-repos"),
		RemoteBase:    viper.GetString("remote-base"),
		RemoteBranch:  viper.GetString("remote-branch"),
		SnapshotsRoot: viper.GetString("snapshots-root"),
		RingStorePath: viper.GetString("ring-store"),
		PollInterval:  viper.GetDuration("poll-interval"),
		ListenAddr:    viper.GetString("listen"),
		Debug:         viper.GetBool("debug"),
	}
}

func mustBind(err error) {
	if err != nil {
		panic(err)
	}
}

// DefaultPort mirrors dispatcher.DefaultPort for callers that only import
// config.
const DefaultPort = dispatcher.DefaultPort
