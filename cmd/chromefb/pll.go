package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tinyrange/chromefb/internal/pll"
)

func parseFamily(name string) ([]pll.Family, error) {
	switch name {
	case "", "all":
		return []pll.Family{pll.FamilyCLE266, pll.FamilyPro}, nil
	case "cle266":
		return []pll.Family{pll.FamilyCLE266}, nil
	case "pro", "unichrome-pro":
		return []pll.Family{pll.FamilyPro}, nil
	default:
		return nil, fmt.Errorf("unknown clock generator %q (cle266, pro)", name)
	}
}

// sweepStats summarises one family over a frequency range.
type sweepStats struct {
	points   int
	worst    pll.Solution
	worstKHz int
	sumAbs   int64
}

func (s *sweepStats) add(kHz int, sol pll.Solution) {
	s.points++
	d := sol.Deviation
	if d < 0 {
		d = -d
	}
	s.sumAbs += int64(d)
	w := s.worst.Deviation
	if w < 0 {
		w = -w
	}
	if s.points == 1 || d > w {
		s.worst = sol
		s.worstKHz = kHz
	}
}

func newPLLCmd(g *globals) *cobra.Command {
	var (
		kHz            int
		family         string
		from, to, step int
	)

	cmd := &cobra.Command{
		Use:   "pll",
		Short: "Show dot clock generator settings",
		Long: `Show the generator setting chosen for --khz, or sweep --from..--to and report ` +
			`the worst deviation per generator. No hardware is touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			families, err := parseFamily(family)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if kHz > 0 {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, f := range families {
					s := f.Synthesize(kHz)
					if !f.Valid(s) {
						fmt.Fprintf(w, "%s:\tno setting for %d kHz\t\n", f, kHz)
						continue
					}
					fmt.Fprintf(w, "%s:\t%s\t", f, s)
					for _, r := range f.Registers(s) {
						fmt.Fprintf(w, " SR%02X=0x%02X", r.Index, r.Value)
					}
					fmt.Fprintln(w)
				}
				return w.Flush()
			}

			if step <= 0 || from <= 0 || to < from {
				return fmt.Errorf("give --khz, or --from <= --to with a positive --step")
			}

			total := int64(len(families)) * int64((to-from)/step+1)
			var bar *progressbar.ProgressBar
			if term.IsTerminal(int(os.Stderr.Fd())) {
				bar = progressbar.NewOptions64(total,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("sweeping"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			stats := make([]sweepStats, len(families))
			for i, f := range families {
				for k := from; k <= to; k += step {
					stats[i].add(k, f.Synthesize(k))
					if bar != nil {
						bar.Add(1)
					}
				}
			}
			if bar != nil {
				bar.Finish()
			}
			g.log.Debug("sweep done", "from", from, "to", to, "step", step, "points", total)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "generator\tpoints\tmean |dev| kHz\tworst at\tworst setting\n")
			for i, f := range families {
				st := stats[i]
				fmt.Fprintf(w, "%s\t%d\t%.1f\t%d kHz\t%s\n",
					f, st.points, float64(st.sumAbs)/float64(st.points), st.worstKHz, st.worst)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&kHz, "khz", 0, "target dot clock in kHz")
	cmd.Flags().StringVar(&family, "family", "all", "clock generator: cle266, pro or all")
	cmd.Flags().IntVar(&from, "from", 20000, "sweep start in kHz")
	cmd.Flags().IntVar(&to, "to", 200000, "sweep end in kHz")
	cmd.Flags().IntVar(&step, "step", 0, "sweep step in kHz")
	return cmd
}
