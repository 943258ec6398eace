package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wave-translate/scheduler"
	"github.com/wippyai/wave-translate/theme"
	"github.com/wippyai/wave-translate/value"
)

type translateOptions struct {
	vars       []string
	translator string
	field      string
	from       uint64
	to         uint64
	fields     bool
}

func (c *cli) newTranslateCmd() *cobra.Command {
	var opts translateOptions
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate the values of trace variables over a time range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eng, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			vars := opts.vars
			if len(vars) == 0 {
				vars = c.trace.Variables()
			}
			if opts.translator != "" {
				for _, v := range vars {
					if err := eng.SetTranslator(v, opts.field, opts.translator); err != nil {
						return err
					}
				}
			}

			b := scheduler.Batch{Viewport: "cli"}
			for _, v := range vars {
				b.Requests = append(b.Requests, scheduler.Request{Variable: v, From: opts.from, To: opts.to})
			}
			res, err := eng.TranslateBatch(cmd.Context(), b)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r := renderer{theme: eng.Theme(), color: c.colorEnabled(out), fields: opts.fields}
			for _, vr := range res.Variables {
				r.variable(out, vr)
			}
			if opts.translator != "" {
				return c.saveSession()
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringArrayVar(&opts.vars, "var", nil, "Variable to translate, repeatable (default: all)")
	f.StringVar(&opts.translator, "translator", "", "Bind this translator before translating")
	f.StringVarP(&opts.field, "field", "f", "", "Field the --translator binding applies to")
	f.Uint64Var(&opts.from, "from", 0, "Start time")
	f.Uint64Var(&opts.to, "to", math.MaxUint64, "End time")
	f.BoolVar(&opts.fields, "fields", false, "Print composite fields on separate lines")
	return cmd
}

type renderer struct {
	theme  theme.Theme
	color  bool
	fields bool
}

func (r renderer) text(res value.TranslationResult) string {
	if !r.color {
		return res.Text
	}
	return r.theme.Render(res, nil)
}

func (r renderer) variable(w io.Writer, vr scheduler.VariableResult) {
	if vr.Err != nil {
		fmt.Fprintf(w, "%s: %v\n", vr.Variable, vr.Err)
		return
	}
	fmt.Fprintf(w, "%s [%s]\n", vr.Variable, vr.Translator)
	for _, run := range vr.Runs {
		fmt.Fprintf(w, "  %s  %s\n", span(run), r.text(run.Result))
		if r.fields {
			r.subResults(w, run.Result.Fields, "    ")
		}
	}
}

func (r renderer) subResults(w io.Writer, fields []value.SubResult, indent string) {
	for _, f := range fields {
		fmt.Fprintf(w, "%s%s: %s\n", indent, f.Name, r.text(f.Result))
		r.subResults(w, f.Result.Fields, indent+"  ")
	}
}

func span(run scheduler.Run) string {
	end := "end"
	if run.End != math.MaxUint64 {
		end = fmt.Sprint(run.End)
	}
	return strings.Join([]string{fmt.Sprint(run.Start), end}, "..")
}
