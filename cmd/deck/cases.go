package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/testdeck/internal/jira"
	"github.com/zulandar/testdeck/internal/testcase"
)

func newCasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "Test case commands",
	}

	cmd.AddCommand(newCasesListCmd())
	cmd.AddCommand(newCasesShowCmd())
	return cmd
}

func newCasesListCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
		folderID   uint
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List test cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			filters := testcase.ListFilters{ProjectID: projectID}
			if cmd.Flags().Changed("folder") {
				filters.FolderID = &folderID
			}
			cases, err := testcase.List(gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(cases) == 0 {
				fmt.Fprintln(out, "No test cases found.")
				return nil
			}

			w := newTable(out)
			w.AppendHeader([]any{"ID", "NAME", "PROJECT", "FOLDER", "UPDATED"})
			for _, tc := range cases {
				w.AppendRow([]any{tc.ID, truncate(tc.Name, 50), tc.ProjectID, folderLabel(tc.FolderID), formatTime(tc.UpdatedAt)})
			}
			alignRight(w, 1, 3, 4)
			w.Render()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().UintVar(&projectID, "project", 0, "filter by project id")
	cmd.Flags().UintVar(&folderID, "folder", 0, "filter by test case folder id")
	return cmd
}

func newCasesShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a test case with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "test case")
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			tc, err := testcase.Get(gormDB, id)
			if err != nil {
				return err
			}
			links, err := jira.ListCaseLinks(gormDB, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %d\n", tc.ID)
			fmt.Fprintf(out, "Name:     %s\n", tc.Name)
			fmt.Fprintf(out, "Project:  %d\n", tc.ProjectID)
			fmt.Fprintf(out, "Folder:   %s\n", folderLabel(tc.FolderID))
			fmt.Fprintf(out, "Updated:  %s\n", formatTime(tc.UpdatedAt))
			for _, l := range links {
				fmt.Fprintf(out, "Jira:     %s %s\n", l.JiraIssueKey, l.URL)
			}

			if len(tc.Steps) == 0 {
				fmt.Fprintln(out, "\nNo steps.")
				return nil
			}
			fmt.Fprintln(out)
			w := newTable(out)
			w.AppendHeader([]any{"#", "STEP", "EXPECTED", "FILES"})
			for _, st := range tc.Steps {
				w.AppendRow([]any{st.Position, truncate(st.StepDescription, 40), truncate(orDash(st.ExpectedResults), 40), len(st.Attachments)})
			}
			alignRight(w, 1, 4)
			w.Render()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
