package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arloliu/pdbgen/compress"
	"github.com/arloliu/pdbgen/format"
	"github.com/arloliu/pdbgen/inspect"
)

// PackedExt is the file extension of packed program databases.
const PackedExt = ".pdbz"

func newPackCmd(a *app) *cobra.Command {
	flags := &packFlags{}

	cmd := &cobra.Command{
		Use:   "pack <file>",
		Short: "Compress a program database for symbol-server upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			if _, err := inspect.Read(bytes.NewReader(data), int64(len(data))); err != nil {
				return fmt.Errorf("%s is not a program database: %w", in, err)
			}

			codecName, level := a.cfg.Pack.Codec, a.cfg.Pack.Level
			if cmd.Flags().Changed("codec") {
				codecName = flags.Codec
			}
			if cmd.Flags().Changed("level") {
				level = flags.Level
			}
			ct, ok := format.ParseCompressionType(codecName)
			if !ok {
				return fmt.Errorf("unknown codec %q", codecName)
			}
			codec, err := compress.CreateCodec(ct, level)
			if err != nil {
				return err
			}

			frame, stats, err := compress.PackWith(data, ct, codec)
			if err != nil {
				return err
			}

			out := flags.Output
			if out == "" {
				out = in + PackedExt
			}
			//nolint:gosec // G306: packed symbols are not sensitive.
			if err := os.WriteFile(out, frame, 0o644); err != nil {
				return err
			}

			a.log.Info().
				Str("codec", ct.String()).
				Int64("original", stats.OriginalSize).
				Int64("packed", stats.PackedSize).
				Float64("savings", stats.SpaceSavings()).
				Str("output", out).
				Msg("packed")

			return nil
		},
	}
	flags.AddFlags(cmd.Flags())

	return cmd
}

func newUnpackCmd(a *app) *cobra.Command {
	var output string
	var verify bool

	cmd := &cobra.Command{
		Use:   "unpack <file>",
		Short: "Restore a packed program database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			frame, err := os.ReadFile(in)
			if err != nil {
				return err
			}

			data, ct, err := compress.Unpack(frame)
			if err != nil {
				return fmt.Errorf("%s: %w", in, err)
			}
			if verify {
				if _, err := inspect.Read(bytes.NewReader(data), int64(len(data))); err != nil {
					return fmt.Errorf("%s does not hold a program database: %w", in, err)
				}
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(in, PackedExt)
				if out == in {
					out = in + ".pdb"
				}
			}
			//nolint:gosec // G306: program databases are not sensitive.
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}

			a.log.Info().Str("codec", ct.String()).Int("size", len(data)).Str("output", out).Msg("unpacked")

			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <file> without "+PackedExt+")")
	cmd.Flags().BoolVar(&verify, "verify", true, "Check that the unpacked data is a program database")

	return cmd
}
