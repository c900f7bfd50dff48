package cmd

import (
	"github.com/spf13/cobra"
)

var (
	settingsPath string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "avatarvoice",
	Short: "Conversational voice pipeline for a talking avatar",
	Long: `avatarvoice lets a user talk to a persona by text or voice and hear the
reply spoken sentence by sentence while an avatar reacts.

Commands:
  serve  - HTTP API and browser session socket
  voice  - local terminal session with speaker and microphone (build tag "voice")`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnv(".env.local", ".env")
		if logLevel == "" {
			logLevel = getEnv("LOG_LEVEL", "")
		}
		configureLogger(logLevel)
		if settingsPath == "" {
			settingsPath = getEnv("SETTINGS_PATH", "./settings.json")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "settings file, .json or .yaml (default: $SETTINGS_PATH or ./settings.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace, debug, info, warn or error (default: $LOG_LEVEL)")
}
