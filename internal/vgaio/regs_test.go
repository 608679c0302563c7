package vgaio_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tinyrange/chromefb/internal/vgaio"
	"github.com/tinyrange/chromefb/internal/vgasim"
)

func TestIndexedBanks(t *testing.T) {
	chip := vgasim.NewChip(0)
	regs := vgaio.NewRegs(chip)

	regs.Do(func(tx *vgaio.Tx) {
		tx.SetCR(0x13, 0xA0)
		tx.SetSeq(0x1C, 0x55)
		tx.SetGraph(0x06, 0x05)
		tx.SetMisc(0x23)
	})

	require.Equal(t, uint8(0xA0), chip.Reg(vgasim.BankCR, 0x13))
	require.Equal(t, uint8(0x55), chip.Reg(vgasim.BankSeq, 0x1C))
	require.Equal(t, uint8(0x05), chip.Reg(vgasim.BankGraph, 0x06))
	require.Equal(t, uint8(0x23), regs.Misc())
	require.Equal(t, uint8(0xA0), regs.CR(0x13))
	require.Equal(t, uint8(0x55), regs.Seq(0x1C))
}

func TestMaskedWrites(t *testing.T) {
	chip := vgasim.NewChip(0)
	chip.SetReg(vgasim.BankCR, 0x35, 0xFF)
	chip.SetReg(vgasim.BankSeq, 0x15, 0x03)
	regs := vgaio.NewRegs(chip)

	regs.MaskCR(0x35, 0x20, 0xE0)
	require.Equal(t, uint8(0x3F), chip.Reg(vgasim.BankCR, 0x35))

	regs.Do(func(tx *vgaio.Tx) {
		tx.MaskSeq(0x15, 0xAC, 0xFC)
		tx.MaskMisc(0x00, 0x01)
		tx.MaskEnable(0x01, 0x01)
	})
	require.Equal(t, uint8(0xAF), chip.Reg(vgasim.BankSeq, 0x15))
	require.Equal(t, uint8(0x66), regs.Misc())

	state := chip.State()
	require.Equal(t, uint8(0x01), state.Enable)
}

func TestAttributeAccessRestoresIndex(t *testing.T) {
	chip := vgasim.NewChip(0)
	regs := vgaio.NewRegs(chip)

	// display enabled: PAS set, flip-flop in index state
	idx, data := chip.AttrIndex()
	require.Equal(t, uint8(0x20), idx)
	require.False(t, data)

	regs.Do(func(tx *vgaio.Tx) {
		tx.SetAttr(0x11, 0x3C)
	})
	require.Equal(t, uint8(0x3C), chip.Reg(vgasim.BankAttr, 0x11))
	require.Equal(t, uint8(0x3C), regs.Attr(0x11))

	regs.Do(func(tx *vgaio.Tx) {
		tx.MaskAttr(0x10, 0x01, 0x03)
	})
	require.Equal(t, uint8(0x0D), chip.Reg(vgasim.BankAttr, 0x10))

	idx, data = chip.AttrIndex()
	require.Equal(t, uint8(0x20), idx, "previous index and PAS restored")
	require.False(t, data, "flip-flop left in index state")
}

func TestAttributeAccessSequence(t *testing.T) {
	chip := vgasim.NewChip(0)
	regs := vgaio.NewRegs(chip)

	chip.Trace()
	regs.Do(func(tx *vgaio.Tx) { tx.SetAttr(0x32, 0x07) })

	base := uint32(vgaio.WindowBase)
	want := []vgasim.Access{
		{Offset: base + vgaio.PortStatus1},
		{Offset: base + vgaio.PortAttrIndex, Value: 0x20},
		{Write: true, Offset: base + vgaio.PortAttrIndex, Value: 0x12},
		{Write: true, Offset: base + vgaio.PortAttrIndex, Value: 0x07},
		{Offset: base + vgaio.PortStatus1},
		{Write: true, Offset: base + vgaio.PortAttrIndex, Value: 0x20},
		{Offset: base + vgaio.PortStatus1},
	}
	got := chip.History()
	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i].Write, got[i].Write, "cycle %d", i)
		require.Equal(t, want[i].Offset, got[i].Offset, "cycle %d", i)
		if want[i].Offset != base+vgaio.PortStatus1 {
			require.Equal(t, want[i].Value, got[i].Value, "cycle %d", i)
		}
	}
}

func TestDACAutoIncrement(t *testing.T) {
	chip := vgasim.NewChip(0)
	regs := vgaio.NewRegs(chip)

	regs.Do(func(tx *vgaio.Tx) {
		tx.SetDACMask(0xFF)
		tx.DACWriteAddress(4)
		for _, v := range []uint8{1, 2, 3, 4, 5, 6} {
			tx.DACWrite(v)
		}
	})

	state := chip.State()
	require.Equal(t, []uint8{1, 2, 3, 4, 5, 6}, state.Palette[12:18])

	var got []uint8
	regs.Do(func(tx *vgaio.Tx) {
		tx.DACReadAddress(5)
		for i := 0; i < 3; i++ {
			got = append(got, tx.DACRead())
		}
	})
	require.Equal(t, []uint8{4, 5, 6}, got)
}

func TestConcurrentPairsStayAtomic(t *testing.T) {
	chip := vgasim.NewChip(0)
	regs := vgaio.NewRegs(chip)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				regs.Do(func(tx *vgaio.Tx) {
					tx.SetCR(uint8(0x40+w), uint8(i))
					tx.SetSeq(uint8(0x40+w), uint8(i))
				})
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 8; w++ {
		require.Equal(t, uint8(199), chip.Reg(vgasim.BankCR, uint8(0x40+w)))
		require.Equal(t, uint8(199), chip.Reg(vgasim.BankSeq, uint8(0x40+w)))
	}
}
