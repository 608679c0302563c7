package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinyrange/chromefb/internal/board"
	"github.com/tinyrange/chromefb/internal/chrome"
)

func newSetCmd(g *globals) *cobra.Command {
	var (
		mf   modeFlags
		hold bool
		pan  string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Program a mode",
		Long: `Program a mode. With --hold the previous VGA state is saved first, the mode ` +
			`is kept until interrupted, and the saved state is put back on exit.`,
		Args: cobra.NoArgs,
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
			dev := b.Device

			var session *chrome.Session
			if hold {
				if session, err = dev.Open(); err != nil {
					return err
				}
				g.log.Info("holding display", "session", session.ID.String())
			}

			if err := program(dev, &req, pan); err != nil {
				return closeOnError(session, err)
			}

			mode, err := dev.Mode()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s, %d bytes per line, %s\n",
				mode.Request.String(), mode.LineLength, mode.Clock)

			if session == nil {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			g.log.Info("restoring display", "session", session.ID.String())
			return session.Close()
		},
	}
	mf.register(cmd)
	cmd.Flags().BoolVar(&hold, "hold", false, "keep the mode until interrupted, then restore the previous state")
	cmd.Flags().StringVar(&pan, "pan", "", "pan the visible area to XxY of the virtual screen")
	return cmd
}

// closeOnError ends a held session after a failed program, keeping both
// errors.
func closeOnError(session *chrome.Session, err error) error {
	if session == nil {
		return err
	}
	return errors.Join(err, session.Close())
}

func program(dev *chrome.Device, req *chrome.ModeRequest, pan string) error {
	if err := dev.SetMode(req); err != nil {
		return err
	}

	if req.BitsPerPixel == 8 {
		// grey ramp so something is visible
		ramp := make([]chrome.Color, 255)
		for i := range ramp {
			v := uint8(i >> 2)
			ramp[i] = chrome.Color{Red: v, Green: v, Blue: v}
		}
		if err := dev.SetColormap(0, ramp); err != nil {
			return err
		}
	}

	if pan != "" {
		x, y, err := parseSize(pan)
		if err != nil {
			return fmt.Errorf("--pan: %w", err)
		}
		if err := dev.Pan(x, y); err != nil {
			return err
		}
	}

	return dev.Blank(chrome.BlankUnblank)
}
