package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/hhanh00/shielded-vote/election"
	"github.com/hhanh00/shielded-vote/logging"
)

// newFlags builds a pflag.FlagSet/viper.Viper pair for one subcommand,
// binding environment variables under the VOTE_ prefix the way
// davinci-sequencer's config.go binds DAVINCI_ — every flag --foo.bar is
// also settable as VOTE_FOO_BAR.
func newFlags(name string) (*flag.FlagSet, *viper.Viper) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	v := viper.New()
	v.SetEnvPrefix("VOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return fs, v
}

// parseFlags parses args, binds fs to v, and returns v for lookups. Common
// to every subcommand so env vars and defaults behave uniformly.
func parseFlags(fs *flag.FlagSet, v *viper.Viper, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	return v.BindPFlags(fs)
}

func initLogging(v *viper.Viper) {
	level := v.GetString("log-level")
	if level == "" {
		level = "info"
	}
	logging.Init(level, os.Stderr)
}

// logFor returns a sub-logger tagged with which subcommand produced it.
func logFor(subcommand string) zerolog.Logger {
	return logging.Logger().With().Str("cmd", subcommand).Logger()
}

// loadElection reads an election.Election from its hex-fielded JSON wire
// form (spec §6's --election JSON flag).
func loadElection(path string) (election.Election, error) {
	var e election.Election
	b, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("read election file: %w", err)
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("decode election file: %w", err)
	}
	return e, nil
}

// saveElection writes e back to path, e.g. after download-refdata refreshes
// its snapshot anchors.
func saveElection(path string, e election.Election) error {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("encode election: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write election file: %w", err)
	}
	return nil
}
