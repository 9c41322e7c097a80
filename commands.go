package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Nukesor/encarne/internal/registry"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Default timeout for database-only commands
const defaultTimeout = 30 * time.Minute

func newStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "stats",
		Short:        "Forget missing files and show how much space encoding saved",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, *configPath, "")
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			if _, err := a.registry.PurgeMissing(ctx); err != nil {
				return err
			}
			stats, err := a.registry.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func printStats(w io.Writer, stats registry.Stats) {
	fmt.Fprintf(w, "Saved space:     %s\n", humanize.IBytes(uint64(max(stats.SavedBytes, 0))))
	fmt.Fprintf(w, "Encoded movies:  %d\n", stats.Encoded)
	fmt.Fprintf(w, "Failed movies:   %d\n", stats.Failed)
	fmt.Fprintf(w, "Pending movies:  %d\n", stats.Pending)
}

func newCleanCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:          "clean",
		Short:        "Forget files that no longer exist, following renames where possible",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, *configPath, "")
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			result, err := a.registry.PurgeMissing(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checked %d movies: %d renames followed, %d removed\n",
				result.Checked, result.Followed, result.Deleted)

			if err := a.db.Vacuum(); err != nil {
				return fmt.Errorf("failed to compact database: %w", err)
			}
			return nil
		},
	}
}

func newRetryCmd(configPath *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:          "retry <file>",
		Short:        "Clear the failed flag of a file so the next run encodes it again",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, *configPath, "")
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			confirm := func(movie *registry.Movie) (bool, error) {
				if yes {
					return true, nil
				}
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return false, errors.New("refusing to ask for confirmation without a terminal, pass --yes")
				}
				return askConfirmation(cmd.InOrStdin(), cmd.OutOrStdout(), movie)
			}
			return retryMovie(ctx, a.registry, args[0], confirm, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// retryMovie clears the failed flag of the movie at path after confirm
// agrees.
func retryMovie(ctx context.Context, reg *registry.Registry, path string,
	confirm func(*registry.Movie) (bool, error), out io.Writer) error {
	movie, err := reg.Lookup(ctx, path)
	if err != nil {
		return err
	}
	if !movie.Failed {
		fmt.Fprintf(out, "%s is not marked as failed\n", movie.Path())
		return nil
	}

	ok, err := confirm(movie)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	if _, err := reg.ClearFailed(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s will be encoded on the next run.\n", movie.Path())
	return nil
}

func askConfirmation(in io.Reader, out io.Writer, movie *registry.Movie) (bool, error) {
	fmt.Fprintf(out, "Clear the failed flag of %s (%s)? [y/N] ", movie.Path(), humanize.IBytes(uint64(movie.Size)))
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
