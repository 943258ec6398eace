package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (c *cli) newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered translators in selection order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDOMAIN\tSOURCE")
			for _, e := range eng.Registry().Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name(), e.Translator.Domain(), e.Source)
			}
			return w.Flush()
		},
	}
}

func (c *cli) newApplicableCmd() *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "applicable <variable>",
		Short: "List the translators accepting a variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			a, err := eng.ApplicableTranslators(args[0], field)
			if err != nil {
				return err
			}
			current, err := eng.Translator(args[0], field)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			show := func(names []string, tag string) {
				for _, n := range names {
					mark := " "
					if n == current {
						mark = "*"
					}
					fmt.Fprintf(out, "%s %s%s\n", mark, n, tag)
				}
			}
			show(a.Preferred, "")
			show(a.NotRecommended, " (not recommended)")
			return nil
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", "", "Composite field path, e.g. hdr.len")
	return cmd
}

func (c *cli) newBindCmd() *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "bind <variable> [translator]",
		Short: "Bind a translator to a variable, or clear the binding, and save the session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.opts.session == "" {
				return fmt.Errorf("bind needs --session")
			}
			eng, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			if err := eng.SetTranslator(args[0], field, name); err != nil {
				return err
			}
			return c.saveSession()
		},
	}
	cmd.Flags().StringVarP(&field, "field", "f", "", "Composite field path")
	return cmd
}
