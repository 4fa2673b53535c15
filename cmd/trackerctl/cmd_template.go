package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newTemplateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "List, export and import templates",
	}
	cmd.AddCommand(newTemplateListCmd(c))
	cmd.AddCommand(newTemplateExportCmd(c))
	cmd.AddCommand(newTemplateImportCmd(c))
	return cmd
}

// templateRow is one line of the template listing.
type templateRow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Stages int    `json:"stages"`
	Tasks  int    `json:"tasks"`
}

func newTemplateListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			list, err := s.templates.ListTemplates(cmd.Context())
			if err != nil {
				return fmt.Errorf("list templates: %w", err)
			}
			rows := make([]templateRow, 0, len(list))
			for _, t := range list {
				rows = append(rows, templateRow{ID: t.ID, Name: t.Name, Stages: len(t.Stages), Tasks: t.TaskCount})
			}

			out := cmd.OutOrStdout()
			if c.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No templates.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTAGES\tTASKS")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", r.ID, r.Name, r.Stages, r.Tasks)
			}
			return w.Flush()
		},
	}
}

func newTemplateExportCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <template-id>",
		Short: "Write a template with its stages and tasks as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			b, err := s.templates.ExportTemplate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("export template %s: %w", args[0], err)
			}
			data, err := yaml.Marshal(toBundleDoc(b))
			if err != nil {
				return fmt.Errorf("encode template: %w", err)
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %s to %s\n", args[0], output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

func newTemplateImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Create a template from a YAML export",
		Long: `Create a new template from a file written by 'trackerctl template export'.
Pass - to read from stdin. The template always gets fresh ids.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var doc bundleDoc
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			b, err := doc.toBundle()
			if err != nil {
				return err
			}

			s, err := c.session(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			tpl, err := s.templates.ImportTemplate(cmd.Context(), b)
			if err != nil {
				return fmt.Errorf("import template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s\n", tpl.Name, tpl.ID)
			return nil
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
