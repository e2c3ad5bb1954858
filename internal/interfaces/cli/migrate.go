package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/LegalLens/pkg/errors"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the knowledge registry schema",
	}

	migrator := func(cmd *cobra.Command) (Migrator, error) {
		_, svc, err := services(cmd)
		if err != nil {
			return nil, err
		}
		if svc.Migrator == nil {
			return nil, notConfigured("postgres registry")
		}
		return svc.Migrator, nil
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (default 1 step)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return errors.Newf(errors.ErrCodeBadRequest, "invalid step count %q", args[0])
				}
				steps = n
			}
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Down(steps); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}

	force := &cobra.Command{
		Use:   "force <version>",
		Short: "Mark a version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Newf(errors.ErrCodeBadRequest, "invalid version %q", args[0])
			}
			m, err := migrator(cmd)
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return err
			}
			return printMigrationStatus(cmd, m)
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

func printMigrationStatus(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Status()
	if err != nil {
		return err
	}
	out := struct {
		Version uint `json:"version"`
		Dirty   bool `json:"dirty"`
	}{version, dirty}
	return PrintResult(cmd, out, func(w io.Writer) {
		state := color.GreenString("clean")
		if dirty {
			state = color.RedString("dirty")
		}
		fmt.Fprintf(w, "schema version %d (%s)\n", version, state)
	})
}
