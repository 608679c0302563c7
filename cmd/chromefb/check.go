package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tinyrange/chromefb/internal/board"
	"github.com/tinyrange/chromefb/internal/config"
)

// modeFlags are shared by the commands that take a mode.
type modeFlags struct {
	name    string
	bpp     uint32
	virtual string
}

func (f *modeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "mode", "m", "", "mode as WxH[@R] (default from the configuration)")
	cmd.Flags().Uint32VarP(&f.bpp, "bpp", "b", 0, "bits per pixel: 8, 16, 24 or 32")
	cmd.Flags().StringVar(&f.virtual, "virtual", "", "virtual resolution WxH")
}

// apply overrides mc with the flags that were given.
func (f *modeFlags) apply(mc config.ModeConfig) (config.ModeConfig, error) {
	if f.name != "" {
		mc.Name = f.name
	}
	if f.bpp != 0 {
		mc.BPP = f.bpp
	}
	if f.virtual != "" {
		w, h, err := parseSize(f.virtual)
		if err != nil {
			return mc, fmt.Errorf("--virtual: %w", err)
		}
		mc.VirtualWidth, mc.VirtualHeight = w, h
	}
	return mc, nil
}

func parseSize(s string) (uint32, uint32, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.ParseUint(ws, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.ParseUint(hs, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	return uint32(w), uint32(h), nil
}

func newCheckCmd(g *globals) *cobra.Command {
	var mf modeFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a mode against the device without programming it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, err := mf.apply(g.cfg.Mode)
			if err != nil {
				return err
			}
			req, err := board.Request(mc)
			if err != nil {
				return err
			}

			b, err := g.openBoard()
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Device.Validate(&req); err != nil {
				return err
			}
			clock := b.Device.Chip().Family().Synthesize(req.PixClockKHz())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "mode:\t%s\n", req.String())
			fmt.Fprintf(w, "timing:\t%d %d %d %d / %d %d %d %d\n",
				req.LeftMargin, req.RightMargin, req.HSyncLen, req.XRes,
				req.UpperMargin, req.LowerMargin, req.VSyncLen, req.YRes)
			fmt.Fprintf(w, "layout:\tred %d/%d green %d/%d blue %d/%d\n",
				req.Red.Offset, req.Red.Length, req.Green.Offset, req.Green.Length, req.Blue.Offset, req.Blue.Length)
			fmt.Fprintf(w, "line length:\t%d bytes\n", req.XResVirtual*req.BytesPerPixel())
			fmt.Fprintf(w, "dot clock:\t%d kHz requested, %s\n", req.PixClockKHz(), clock)
			return w.Flush()
		},
	}
	mf.register(cmd)
	return cmd
}
