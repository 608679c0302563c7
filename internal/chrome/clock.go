package chrome

import (
	"github.com/tinyrange/chromefb/internal/pll"
	"github.com/tinyrange/chromefb/internal/vgaio"
)

// writeClock loads s into the primary display PLL of a family generator and
// latches it.
func writeClock(tx *vgaio.Tx, family pll.Family, s pll.Solution) {
	for _, r := range family.Registers(s) {
		tx.SetSeq(r.Index, r.Value)
	}

	// reset the PLL so it picks up the new setting
	tx.MaskSeq(0x40, 0x02, 0x02)
	tx.MaskSeq(0x40, 0x00, 0x02)

	tx.Misc()
}
