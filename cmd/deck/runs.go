package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/testdeck/internal/autosave"
	"github.com/zulandar/testdeck/internal/client"
	"github.com/zulandar/testdeck/internal/config"
	"github.com/zulandar/testdeck/internal/jira"
	"github.com/zulandar/testdeck/internal/models"
	"github.com/zulandar/testdeck/internal/testrun"
)

// apiTimeout bounds every API call made by a CLI command.
const apiTimeout = 30 * time.Second

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Test run commands",
	}

	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsCreateCmd())
	cmd.AddCommand(newRunsStatusCmd())
	cmd.AddCommand(newRunsStepCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		folderID   uint
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List test runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			filters := testrun.ListFilters{ProjectID: projectID, Status: status}
			if cmd.Flags().Changed("folder") {
				filters.FolderID = &folderID
			}
			runs, err := testrun.List(gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No test runs found.")
				return nil
			}

			w := newTable(out)
			w.AppendHeader([]any{"ID", "NAME", "STATUS", "LOCKED", "FROM CASE", "FOLDER", "UPDATED"})
			for _, r := range runs {
				w.AppendRow([]any{r.ID, r.Name, r.Status, checkMark(testrun.IsLocked(r.Status)),
					truncate(sourceLabel(r), 40), folderLabel(r.FolderID), formatTime(r.UpdatedAt)})
			}
			alignRight(w, 1)
			w.Render()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&projectID, "project", 0, "filter by project id")
	cmd.Flags().UintVar(&folderID, "folder", 0, "filter by test run folder id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (ready_to_test, in_progress, passed, failed, na)")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a test run with its step results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "test run")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			run, err := testrun.Get(gormDB, id)
			if err != nil {
				return err
			}
			links, err := jira.ListRunLinks(gormDB, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printRun(cmd, run)
			for _, l := range links {
				fmt.Fprintf(out, "Jira:     %s %s\n", l.JiraIssueKey, l.URL)
			}
			printSteps(cmd, run.Steps)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newRunsCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		folderID   uint
	)

	cmd := &cobra.Command{
		Use:   "create <test-case-id>",
		Short: "Create a test run from a test case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := parseID(args[0], "test case")
			if err != nil {
				return err
			}
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			files, err := openStore(cfg)
			if err != nil {
				return err
			}

			opts := testrun.CreateOpts{Name: name, TestCaseID: caseID}
			if cmd.Flags().Changed("folder") {
				opts.FolderID = &folderID
			}
			run, err := testrun.Create(gormDB, files, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created test run %d %q with %d step(s)\n", run.ID, run.Name, len(run.Steps))
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&name, "name", "n", "", "run name (required, at most 50 characters)")
	cmd.Flags().UintVar(&folderID, "folder", 0, "test run folder id")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newRunsStatusCmd() *cobra.Command {
	var (
		configPath string
		server     string
	)

	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change the status of a test run",
		Long: `Changes a run's status through the API server, so chat notifications are
sent when the run is locked. Passed and failed lock the run's step results.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "test run")
			if err != nil {
				return err
			}
			c, err := apiClient(configPath, server)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
			defer cancel()
			run, err := c.GetRun(ctx, id)
			if err != nil {
				return err
			}
			session := autosave.New(c, run, autosave.Options{})
			if err := session.SetStatus(ctx, args[1]); err != nil {
				return err
			}

			run = session.Run()
			lock := ""
			if testrun.IsLocked(run.Status) {
				lock = " (locked)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test run %d is now %s%s\n", run.ID, run.Status, lock)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&server, "server", "", "API base URL (default derived from server.port and server.base_path)")
	return cmd
}

func newRunsStepCmd() *cobra.Command {
	var (
		configPath string
		server     string
		actual     string
		stepStatus string
		checked    bool
		attach     []string
		detach     []string
	)

	cmd := &cobra.Command{
		Use:   "step <run-id> <position>",
		Short: "Record the result of one step",
		Long: `Records actual results for the step at the given position (1-based).
Only the flags given are changed. Images passed with --attach are uploaded
and added to the step's actual result attachments.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "test run")
			if err != nil {
				return err
			}
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return fmt.Errorf("invalid step position %q", args[1])
			}
			c, err := apiClient(configPath, server)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), apiTimeout)
			defer cancel()
			run, err := c.GetRun(ctx, id)
			if err != nil {
				return err
			}
			step := stepAt(run, position)
			if step == nil {
				return fmt.Errorf("test run %d has no step %d", id, position)
			}

			session := autosave.New(c, run, autosave.Options{Files: c})
			patch := testrun.StepPatch{ID: step.ID}
			if cmd.Flags().Changed("actual") {
				patch.ActualResults = &actual
			}
			if cmd.Flags().Changed("status") {
				patch.StepStatus = &stepStatus
			}
			if cmd.Flags().Changed("checked") {
				patch.Checked = &checked
			}
			if patch.ActualResults != nil || patch.StepStatus != nil || patch.Checked != nil {
				if err := session.EditStep(patch); err != nil {
					return err
				}
			}
			for _, path := range attach {
				a, err := uploadFile(ctx, c, path)
				if err != nil {
					return err
				}
				if err := session.AddAttachment(step.ID, a); err != nil {
					return err
				}
			}
			for _, attachmentID := range detach {
				if err := session.RemoveAttachment(ctx, step.ID, attachmentID); err != nil {
					return err
				}
			}
			if err := session.Close(ctx); err != nil {
				return err
			}

			printSteps(cmd, []models.TestRunStep{*stepAt(session.Run(), position)})
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&server, "server", "", "API base URL (default derived from server.port and server.base_path)")
	cmd.Flags().StringVar(&actual, "actual", "", "actual results text")
	cmd.Flags().StringVar(&stepStatus, "status", "", "step status (not_run, passed, failed, na, passed_with_improvements)")
	cmd.Flags().BoolVar(&checked, "checked", false, "mark the step as checked")
	cmd.Flags().StringArrayVar(&attach, "attach", nil, "PNG or JPEG file to attach (repeatable)")
	cmd.Flags().StringArrayVar(&detach, "detach", nil, "attachment id to remove (repeatable)")
	return cmd
}

// apiClient builds a client for --server, falling back to the local server
// described by the config file.
func apiClient(configPath, server string) (*client.Client, error) {
	if server == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		server = localServerURL(cfg)
	}
	return client.New(server, client.WithTimeout(apiTimeout))
}

func localServerURL(cfg *config.Config) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.Server.Port, cfg.Server.BasePath)
}

func uploadFile(ctx context.Context, c *client.Client, path string) (models.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Attachment{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return c.UploadAttachment(ctx, filepath.Base(path), f)
}

func stepAt(run *models.TestRun, position int) *models.TestRunStep {
	for i := range run.Steps {
		if run.Steps[i].Position == position {
			return &run.Steps[i]
		}
	}
	return nil
}

func sourceLabel(r models.TestRun) string {
	if r.SourceTestCaseID == nil {
		return r.SourceTestCaseName + " (deleted)"
	}
	return fmt.Sprintf("#%d %s", *r.SourceTestCaseID, r.SourceTestCaseName)
}

func printRun(cmd *cobra.Command, run *models.TestRun) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:       %d\n", run.ID)
	fmt.Fprintf(out, "Name:     %s\n", run.Name)
	fmt.Fprintf(out, "Status:   %s\n", run.Status)
	fmt.Fprintf(out, "Locked:   %t\n", testrun.IsLocked(run.Status))
	fmt.Fprintf(out, "Project:  %d\n", run.ProjectID)
	fmt.Fprintf(out, "Folder:   %s\n", folderLabel(run.FolderID))
	fmt.Fprintf(out, "Source:   %s\n", sourceLabel(*run))
	fmt.Fprintf(out, "Created:  %s\n", formatTime(run.CreatedAt))
	fmt.Fprintf(out, "Updated:  %s\n", formatTime(run.UpdatedAt))
}

func printSteps(cmd *cobra.Command, steps []models.TestRunStep) {
	out := cmd.OutOrStdout()
	if len(steps) == 0 {
		fmt.Fprintln(out, "\nNo steps.")
		return
	}
	fmt.Fprintln(out)
	w := newTable(out)
	w.AppendHeader([]any{"#", "STEP", "EXPECTED", "ACTUAL", "STATUS", "CHECKED", "FILES"})
	for _, st := range steps {
		w.AppendRow([]any{st.Position, truncate(st.StepDescription, 30), truncate(orDash(st.ExpectedResults), 30),
			truncate(orDash(st.ActualResults), 30), st.StepStatus, checkMark(st.Checked), len(st.ActualResultAttachments)})
	}
	alignRight(w, 1, 7)
	w.Render()
}
