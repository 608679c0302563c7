package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyrange/chromefb/internal/chrome"
)

func newDumpCmd(g *globals) *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the legacy VGA register state",
		Long: `Read the legacy VGA register state of the device and print it, or save it ` +
			`with --out. --in prints a previously saved file instead of reading the device.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rf *chrome.RegisterFile
			if in != "" {
				f, err := os.Open(in)
				if err != nil {
					return err
				}
				defer f.Close()
				if rf, err = chrome.LoadRegisterFile(f); err != nil {
					return fmt.Errorf("%s: %w", in, err)
				}
			} else {
				b, err := g.openBoard()
				if err != nil {
					return err
				}
				defer b.Close()
				rf = b.Device.Snapshot()
			}

			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := rf.Save(f); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				g.log.Info("saved register file", "path", out, "text_mode", rf.TextMode())
				return nil
			}

			printRegisterFile(cmd.OutOrStdout(), rf)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "save the register file here")
	cmd.Flags().StringVarP(&in, "in", "i", "", "print a saved register file")
	return cmd
}

func printBank(w io.Writer, name string, regs []uint8) {
	for row := 0; row < len(regs); row += 16 {
		fmt.Fprintf(w, "%s%02X:", name, row)
		for i := row; i < row+16 && i < len(regs); i++ {
			fmt.Fprintf(w, " %02X", regs[i])
		}
		fmt.Fprintln(w)
	}
}

func printRegisterFile(w io.Writer, rf *chrome.RegisterFile) {
	fmt.Fprintf(w, "MISC: %02X\n", rf.Misc)
	printBank(w, "CR", rf.CR[:])
	printBank(w, "SR", rf.SR[:])
	printBank(w, "GR", rf.GR[:])
	printBank(w, "AR", rf.AR[:])

	fmt.Fprintln(w, "palette:")
	for i := 0; i < len(rf.Palette); i += 8 {
		fmt.Fprintf(w, "%3d:", i)
		for _, c := range rf.Palette[i : i+8] {
			fmt.Fprintf(w, " %02X%02X%02X", c.Red, c.Green, c.Blue)
		}
		fmt.Fprintln(w)
	}

	if rf.TextMode() {
		fmt.Fprintf(w, "text mode, %d bytes of planes saved\n", len(rf.Planes))
	} else {
		fmt.Fprintln(w, "graphics mode")
	}
}
