package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jokeboard/internal/config"
)

var (
	// Global flags
	configPath string
	count      int
	backend    string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jokeboard",
	Short: "Vote on dad jokes, lock your favourites, fetch more",
	Long: `jokeboard keeps a short list of jokes from icanhazdadjoke.com.

Run without arguments to open the interactive viewer. The list is saved after
every change and picked up again on the next start.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE:              runView,
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the interactive viewer (default)",
	Args:  cobra.NoArgs,
	RunE:  runView,
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Serve a joke list per chat over Telegram",
	Args:  cobra.NoArgs,
	RunE:  runBot,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the list sorted by votes",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var voteCmd = &cobra.Command{
	Use:   "vote [id] [up|down]",
	Short: "Vote a joke up or down",
	Example: `  jokeboard vote R7UfaahVfFd up
  jokeboard vote R7UfaahVfFd down`,
	Args: cobra.ExactArgs(2),
	RunE: runVote,
}

var lockCmd = &cobra.Command{
	Use:   "lock [id]",
	Short: "Lock or unlock a joke so fetch keeps it",
	Args:  cobra.ExactArgs(1),
	RunE:  runLock,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Replace every unlocked joke with new ones",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero all votes and forget the saved list",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().IntVarP(&count, "count", "n", 0, "Number of jokes in the list (overrides jokes.count)")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Storage backend: memory, file, postgres, sqlite or nats")

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}

// loadConfig reads the config once for every command and applies the flag
// overrides before validating.
func loadConfig(cmd *cobra.Command, _ []string) error {
	c, err := config.Read(configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("count") {
		c.Jokes.Count = count
	}
	if backend != "" {
		c.Storage.Backend = backend
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	return nil
}

func describeError(err error) string {
	switch {
	case errors.Is(err, config.ErrEmptyBotToken):
		return "Error: BOT_TOKEN environment variable is required"
	case errors.Is(err, config.ErrEmptyDBPassword):
		return "Error: DB_PASSWORD environment variable is required for the postgres backend"
	case errors.Is(err, config.ErrInvalidCount):
		return "Error: the joke count must be positive"
	case errors.Is(err, config.ErrUnknownBackend):
		return fmt.Sprintf("Error: %v (use memory, file, postgres, sqlite or nats)", err)
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
