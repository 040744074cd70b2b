package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	debugLevel  string
	hostname    string
	logFile     string
	maxLogFiles int
	port        int
	profile     bool
	seed        int64
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CARDROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "cardroomsrv",
		Short:         "A multiplayer card-game server speaking JSON over WebSocket.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.debugLevel, "debug-level", "info", "log level, or subsystem=level pairs like SRVR=debug,BJCK=trace (env: CARDROOM_DEBUG_LEVEL)")
	fs.StringVar(&cfg.hostname, "hostname", "localhost", "host or address to listen on (env: CARDROOM_HOSTNAME)")
	fs.StringVar(&cfg.logFile, "log-file", "", "mirror logs to this rotating file (env: CARDROOM_LOG_FILE)")
	fs.IntVar(&cfg.maxLogFiles, "max-log-files", 5, "rotated log files to keep (env: CARDROOM_MAX_LOG_FILES)")
	fs.IntVarP(&cfg.port, "port", "p", 3000, "port to listen on (env: CARDROOM_PORT)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: CARDROOM_PROFILE)")
	fs.Int64Var(&cfg.seed, "seed", 0, "deterministic shoe RNG seed, 0 for random (env: CARDROOM_SEED)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("cardroomsrv v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
