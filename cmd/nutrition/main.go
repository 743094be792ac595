package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abchbx/nutrition-agent/internal/config"
)

var version = "dev"

var (
	noColor bool
	userID  string
)

var rootCmd = &cobra.Command{
	Use:   "nutrition",
	Short: "Nutrition lookup, food logging and diet assistant",
	Long: `nutrition resolves foods to nutrient data (USDA FoodData Central, the
local food table, a semantic index over it, then Nutritionix), keeps a
per-user memory of profile, consultations, daily logs and goals, and answers
diet questions through a local or hosted LLM.

Run "nutrition serve" first; the other commands talk to that server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nutrition version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", defaultUser(), "user id (default $NUTRITION_USER or \"default\")")

	rootCmd.AddCommand(
		serveCmd,
		askCmd,
		foodCmd,
		categoryCmd,
		profileCmd,
		logCmd,
		goalCmd,
		reportCmd,
		indexCmd,
		configCmd,
		versionCmd,
	)
}

func defaultUser() string {
	if u := os.Getenv("NUTRITION_USER"); u != "" {
		return u
	}
	return "default"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// setupLogging installs the process-wide slog handler.
func setupLogging(cfg config.LogConfig, w io.Writer) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}
