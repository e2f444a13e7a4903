package link

import (
	"os"

	"github.com/creack/pty"
)

// OpenPTYPair allocates a pseudo-terminal pair and wraps the slave side in
// a SerialEndpoint, returning that endpoint plus the master *os.File for a
// test or simulator to drive directly. This exercises SerialEndpoint's
// real read-loop/Send/Close paths without requiring physical hardware —
// grounded on the teacher's own pty-backed KISS interface (an alternative
// backend behind the same frame-processing entry point as the serial and
// TCP versions).
func OpenPTYPair() (endpoint *SerialEndpoint, masterFile *os.File, err error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, nil, err
	}

	return newSerialEndpoint(slave), master, nil
}
