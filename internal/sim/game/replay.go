package game

import (
	"errors"
	"fmt"
)

var ErrNotReplayable = errors.New("command cannot be replayed")

// Replay re-applies a logged command. Rejected entries are skipped. The entry
// must land on the same sequence number it was logged with.
func (in *Instance) Replay(e CommandEntry) (applied bool, err error) {
	if e.Code != "" {
		return false, nil
	}
	if e.Seq != in.Seq()+1 {
		return false, fmt.Errorf("replay seq gap: instance at %d, entry %d", in.Seq(), e.Seq)
	}
	if _, err = in.Apply(e); errors.Is(err, ErrNotReplayable) {
		return false, err
	}
	if err != nil {
		return false, fmt.Errorf("replay seq %d: %w", e.Seq, err)
	}
	return true, nil
}
