package capture

import (
	"context"

	"github.com/LdDl/scanbridge/bridge"
	"github.com/LdDl/scanbridge/events"
	"github.com/LdDl/scanbridge/selection"
)

// Selection reports barcodes the user selected or unselected.
type Selection struct {
	Mode *Mode

	bridge  *bridge.Bridge
	session *selection.Session
}

// NewSelection uses session for counters; pass the same session to the bridge
// so that counts can be queried by the host.
func NewSelection(b *bridge.Bridge, mode *Mode, session *selection.Session) *Selection {
	return &Selection{
		Mode:    mode,
		bridge:  b,
		session: session,
	}
}

// Process records the frame's selection changes and notifies the selection listener
func (s *Selection) Process(ctx context.Context, frame Frame) error {
	if !s.Mode.Enabled() {
		return nil
	}
	if len(frame.Selected) > 0 || len(frame.Unselected) > 0 {
		s.session.Update(frame.SequenceID, frame.Selected, frame.Unselected)
		if _, err := s.bridge.ModeStatus(ctx, events.DidUpdateSelection, s.Mode, s.session.Payload()); err != nil {
			return err
		}
	}
	if !s.Mode.Enabled() {
		return nil
	}
	_, err := s.bridge.ModeStatus(ctx, events.SelectionDidUpdateSession, s.Mode, s.session.Payload())
	return err
}
