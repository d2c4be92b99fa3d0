package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/testdeck/internal/dashboard"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/project"
)

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Project commands",
	}

	cmd.AddCommand(newProjectsListCmd())
	cmd.AddCommand(newProjectsCreateCmd())
	return cmd
}

func newProjectsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects with case and run counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			projects, err := project.List(gormDB)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintln(out, "No projects found.")
				return nil
			}

			w := newTable(out)
			w.AppendHeader([]any{"ID", "NAME", "CASES", "RUNS", "OPEN", "PASSED", "FAILED"})
			for _, p := range projects {
				s, err := dashboard.ProjectSummary(gormDB, p.ID)
				if err != nil {
					return err
				}
				open := s.TestRuns - s.Locked
				w.AppendRow([]any{p.ID, truncate(p.Name, 40), s.TestCases, s.TestRuns, open,
					s.ByStatus[models.RunStatusPassed], s.ByStatus[models.RunStatusFailed]})
			}
			alignRight(w, 1, 3, 4, 5, 6, 7)
			w.Render()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newProjectsCreateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			p, err := project.Create(gormDB, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %d %q\n", p.ID, p.Name)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
