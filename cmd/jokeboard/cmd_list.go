package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"jokeboard/internal/jokelist"
	"jokeboard/internal/models"
	"jokeboard/internal/tui"
)

var (
	idStyle    = lipgloss.NewStyle().Faint(true)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// withList initializes the shared list, runs fn on it and prints the result.
func withList(cmd *cobra.Command, fn func(ctx context.Context, ctrl *jokelist.Controller) error) error {
	closeLog, err := initLogging(false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	ctrl, closeStore, err := session(ctx)
	defer closeStore()
	if err != nil {
		return err
	}

	if err := ctrl.Initialize(ctx); err != nil {
		return fmt.Errorf("could not fetch jokes: %w", err)
	}
	if fn != nil {
		if err := fn(ctx, ctrl); err != nil {
			return err
		}
	}

	printList(cmd.OutOrStdout(), ctrl.Sorted())
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	return withList(cmd, nil)
}

func runVote(cmd *cobra.Command, args []string) error {
	delta, err := parseDirection(args[1])
	if err != nil {
		return err
	}
	return withList(cmd, func(ctx context.Context, ctrl *jokelist.Controller) error {
		if err := requireJoke(ctrl, args[0]); err != nil {
			return err
		}
		return ctrl.Vote(ctx, args[0], delta)
	})
}

func runLock(cmd *cobra.Command, args []string) error {
	return withList(cmd, func(ctx context.Context, ctrl *jokelist.Controller) error {
		if err := requireJoke(ctrl, args[0]); err != nil {
			return err
		}
		return ctrl.ToggleLock(ctx, args[0])
	})
}

func runFetch(cmd *cobra.Command, _ []string) error {
	return withList(cmd, func(ctx context.Context, ctrl *jokelist.Controller) error {
		if err := ctrl.Regenerate(ctx); err != nil {
			return fmt.Errorf("could not fetch jokes: %w", err)
		}
		return nil
	})
}

func runReset(cmd *cobra.Command, _ []string) error {
	return withList(cmd, func(ctx context.Context, ctrl *jokelist.Controller) error {
		if err := ctrl.ResetVotes(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Votes reset. The saved list was cleared.")
		return nil
	})
}

var errBadDirection = errors.New(`direction must be "up" or "down"`)

func parseDirection(s string) (int, error) {
	switch strings.ToLower(s) {
	case "up", "+":
		return 1, nil
	case "down", "-":
		return -1, nil
	}
	return 0, fmt.Errorf("%w, got %q", errBadDirection, s)
}

func requireJoke(ctrl *jokelist.Controller, id string) error {
	if !slices.Contains(models.IDs(ctrl.Jokes()), id) {
		return fmt.Errorf("no joke with id %q in the list", id)
	}
	return nil
}

// printList writes one line per joke, highest votes first.
func printList(w io.Writer, jokes []models.Joke) {
	fmt.Fprintln(w, titleStyle.Render("Jokes"))
	if len(jokes) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, j := range jokes {
		votes := tui.VoteStyle(j.Votes).Render(fmt.Sprintf("%+4d", j.Votes))
		fmt.Fprintf(w, "%s %s  %s %s\n", votes, tui.LockGlyph(j.Locked), j.Text, idStyle.Render("["+j.ID+"]"))
	}
}
