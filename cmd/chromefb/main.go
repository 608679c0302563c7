// Command chromefb probes VIA UniChrome display controllers and programs
// display modes on them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyrange/chromefb/internal/board"
	"github.com/tinyrange/chromefb/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chromefb: %v\n", err)
		os.Exit(1)
	}
}

// globals carries the persistent flags and what setup derives from them.
type globals struct {
	configPath string
	device     string
	simulate   string
	noDirect   bool
	debug      bool

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "chromefb",
		Short: "Drive the primary display of VIA UniChrome IGPs",
		Long: `chromefb identifies a VIA CastleRock/UniChrome display controller and the host ` +
			`bridge it sits on, validates display modes against it and programs them. ` +
			`Every command also runs against a simulated platform (--simulate).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "configuration file (default: ./"+config.DefaultFilename+" if present)")
	flags.StringVar(&g.device, "device", "", "PCI address of the IGP (default: first VIA chrome found)")
	flags.StringVar(&g.simulate, "simulate", "", "run against a simulated platform preset")
	flags.BoolVar(&g.noDirect, "no-direct", false, "leave the CPU direct framebuffer window alone")
	flags.BoolVar(&g.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newProbeCmd(g),
		newCheckCmd(g),
		newSetCmd(g),
		newPLLCmd(g),
		newDumpCmd(g),
	)
	return root
}

func (g *globals) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	path := g.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultFilename); err == nil {
			path = config.DefaultFilename
		}
	}
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Device = g.device
	}
	if flags.Changed("simulate") {
		cfg.Simulate = g.simulate
	}
	if g.noDirect {
		cfg.DirectAccess = false
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if g.debug {
		level = slog.LevelDebug
	}
	g.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.log)

	g.cfg = cfg
	g.log.Debug("configuration", "path", path, "device", cfg.Device, "simulate", cfg.Simulate,
		"direct_access", cfg.DirectAccess, "mode", cfg.Mode.Name, "bpp", cfg.Mode.BPP)
	return nil
}

func (g *globals) openBoard() (*board.Board, error) {
	b, err := board.Open(g.cfg, g.log)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return b, nil
}
