package chrome

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/tinyrange/chromefb/internal/vgaio"
)

// Session is one user of the display. The first open session saves the
// legacy VGA state; closing the last one puts it back.
type Session struct {
	ID xid.ID

	dev    *Device
	closed bool
}

// Open starts a session.
func (d *Device) Open() (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.users == 0 {
		if d.saved != nil {
			return nil, fmt.Errorf("%w: state already saved", ErrInvalidOwnershipState)
		}
		d.regs.Do(func(tx *vgaio.Tx) {
			d.saved = storeRegisters(tx, d.fb)
		})
		d.log.Debug("saved VGA state", "text_mode", d.saved.TextMode(), "planes", len(d.saved.Planes))
	}
	d.users++

	s := &Session{ID: xid.New(), dev: d}
	d.log.Debug("session opened", "session", s.ID.String(), "users", d.users)
	return s, nil
}

// Close ends the session. Closing twice is an error.
func (s *Session) Close() error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	if s.closed || d.users == 0 {
		return fmt.Errorf("%w: session %s already closed", ErrInvalidOwnershipState, s.ID)
	}

	if d.users == 1 {
		if d.saved == nil {
			return fmt.Errorf("%w: no saved state to restore", ErrInvalidOwnershipState)
		}
		d.regs.Do(func(tx *vgaio.Tx) {
			restoreRegisters(tx, d.fb, d.saved)
		})
		d.saved = nil
		d.mode = nil
		d.log.Debug("restored VGA state")
	}
	d.users--
	s.closed = true

	d.log.Debug("session closed", "session", s.ID.String(), "users", d.users)
	return nil
}

// Users returns the number of open sessions.
func (d *Device) Users() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users
}
