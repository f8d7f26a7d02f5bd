package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// OutputFormat represents the desired output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

var inspectFormats = []OutputFormat{FormatText, FormatJSON, FormatYAML}

// addFormatFlag adds a --format/-f flag restricted to supported.
func addFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat OutputFormat, supported []OutputFormat) {
	names := make([]string, len(supported))
	for i, f := range supported {
		names[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(names, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "f", string(defaultFormat), description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

// validateFormat checks if the format is in the supported list.
func validateFormat(format string, supported []OutputFormat) error {
	for _, s := range supported {
		if format == string(s) {
			return nil
		}
	}

	names := make([]string, len(supported))
	for i, s := range supported {
		names[i] = string(s)
	}

	return fmt.Errorf("unsupported format %q, must be one of: %s", format, strings.Join(names, ", "))
}

// packFlags holds the flag values of the pack command. Unset flags fall back
// to the pack section of the config file.
type packFlags struct {
	Output string
	Codec  string
	Level  int
}

// AddFlags adds the pack flags to a FlagSet.
func (f *packFlags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&f.Output, "output", "o", "", "Output file (default <file>.pdbz)")
	flags.StringVar(&f.Codec, "codec", "", "Compression codec (none, zstd, s2, lz4)")
	flags.IntVar(&f.Level, "level", 0, "Zstd compression level, 1-22")
}
