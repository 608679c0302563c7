package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tinyrange/chromefb/internal/vgasim"
)

func newProbeCmd(g *globals) *cobra.Command {
	var listPresets bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Identify the display controller and its host bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if listPresets {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, name := range vgasim.Presets() {
					fmt.Fprintf(w, "%s\t%s\n", name, vgasim.Describe(name))
				}
				return w.Flush()
			}

			b, err := g.openBoard()
			if err != nil {
				return err
			}
			defer b.Close()

			info := b.Device.Platform()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "device:\t%s\n", b.Location)
			fmt.Fprintf(w, "chip:\t%s\n", b.Device.Chip())
			fmt.Fprintf(w, "clock generator:\t%s\n", b.Device.Chip().Family())
			fmt.Fprintf(w, "host bridge:\t%s rev 0x%02X\n", info.Host, info.Revision)
			fmt.Fprintf(w, "memory:\t%s\n", info.RAM)
			fmt.Fprintf(w, "framebuffer:\t%d MiB at 0x%08X\n", info.FramebufferSize>>20, info.FramebufferBase)
			fmt.Fprintf(w, "direct access:\t%t\n", info.Direct)
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&listPresets, "presets", false, "list the simulated platforms instead")
	return cmd
}
