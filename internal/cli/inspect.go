package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/inspect"
)

type inspectOptions struct {
	format  string
	globals bool
	publics bool
}

// report is the document printed by the inspect command.
type report struct {
	File    *inspect.File    `json:"file" yaml:"file"`
	Globals []inspect.Global `json:"globals,omitempty" yaml:"globals,omitempty"`
	Publics []inspect.Public `json:"publics,omitempty" yaml:"publics,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Dump the structure of a program database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(opts.format, inspectFormats); err != nil {
				return err
			}

			f, err := inspect.Open(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			a.log.Debug().Str("file", args[0]).Int("streams", len(f.StreamSizes)).Msg("opened")

			r := report{File: f}
			if opts.globals {
				if r.Globals, err = f.Globals(); err != nil {
					return err
				}
			}
			if opts.publics {
				if r.Publics, err = f.Publics(); err != nil {
					return err
				}
			}

			return writeReport(cmd.OutOrStdout(), OutputFormat(opts.format), &r)
		},
	}

	addFormatFlag(cmd, &opts.format, FormatText, inspectFormats)
	cmd.Flags().BoolVar(&opts.globals, "globals", false, "List the globals directory")
	cmd.Flags().BoolVar(&opts.publics, "publics", false, "List the publics directory")

	return cmd
}

func writeReport(w io.Writer, of OutputFormat, r *report) error {
	switch of {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}

		return enc.Close()
	default:
		return writeText(w, r)
	}
}

func writeText(w io.Writer, r *report) error {
	f := r.File
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "GUID\t%s\n", f.Info.GUID)
	fmt.Fprintf(tw, "Age\t%d\n", f.Info.Age)
	fmt.Fprintf(tw, "Signature\t0x%08x\n", f.Info.Signature)
	fmt.Fprintf(tw, "Machine\t%s\n", format.Machine(f.Machine))
	fmt.Fprintf(tw, "Toolchain\t%d.%d\n", (f.BuildNumber>>8)&0x7f, f.BuildNumber&0xff)
	fmt.Fprintf(tw, "Streams\t%d\n", len(f.StreamSizes))
	fmt.Fprintf(tw, "Types\t%d\n", f.TypeCount)
	fmt.Fprintf(tw, "IDs\t%d\n", f.IDCount)
	fmt.Fprintf(tw, "Globals\t%d\n", f.GlobalCount)
	fmt.Fprintf(tw, "Publics\t%d\n", f.PublicCount)
	fmt.Fprintf(tw, "Names\t%d\n", f.NameCount)
	for _, s := range f.Info.NamedStreams {
		fmt.Fprintf(tw, "Stream %s\t%d\n", s.Name, s.Index)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTREAM\tSYMBOLS\tC13\tFILES\tMODULE")
	for i, m := range f.Modules {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%s\n", i, m.SymbolStream, m.SymbolSize, m.C13Size, len(m.SourceFiles), m.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Globals) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "OFFSET\tREFS\tKIND\tGLOBAL")
		for _, g := range r.Globals {
			fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", g.RecordOffset, g.RefCount, g.Kind, g.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.Publics) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ADDRESS\tFLAGS\tPUBLIC")
		for _, p := range r.Publics {
			fmt.Fprintf(tw, "%04x:%08x\t%d\t%s\n", p.Section, p.Offset, p.Flags, p.Name)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	return nil
}
