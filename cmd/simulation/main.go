package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	baseURL     string
	accessToken string
	userID      string
)

var rootCmd = &cobra.Command{
	Use:   "simulation",
	Short: "Drive the tutor from a terminal",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", envOr("TUTOR_URL", "http://localhost:3000/api"), "tutor API base URL")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", os.Getenv("TUTOR_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "u1", "learner id")

	rootCmd.AddCommand(askCmd, ingestCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
