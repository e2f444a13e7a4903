package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/halcyon-embedded/dwire/pkg/wire"
)

func TestComposeBasic(t *testing.T) {
	buf := wire.NewBuffer(16)
	n := copy(buf.Payload(), "hello")
	buf.Len = n

	frame := Compose(buf, wire.ContentCmd)

	assert.Equal(t, byte(wire.ContentIDCmdOut), frame[0])
	assert.Equal(t, "hello", string(frame[1:1+n]))
	assert.Equal(t, byte(0x00), frame[1+n])
	assert.Equal(t, wire.ContentEnd, frame[2+n])
	assert.Equal(t, 3+n, len(frame))
}

func TestComposeTruncatesAtCapacity(t *testing.T) {
	buf := wire.NewBuffer(8) // payload region is 5 bytes
	long := strings.Repeat("x", 20)
	n := copy(buf.Payload(), long)
	buf.Len = n // producer already bounded its own write

	frame := Compose(buf, wire.ContentLog)
	assert.Equal(t, 8, len(frame))
	assert.Equal(t, wire.ContentEnd, frame[len(frame)-1])
}

func TestComposeForcesNoneBelowMinCapacity(t *testing.T) {
	buf := wire.NewBuffer(2)
	frame := Compose(buf, wire.ContentProc)
	assert.Equal(t, byte(wire.ContentIDNone), frame[0])
}

// P1: frame round-trip. Any ASCII payload within capacity-3, with no
// reserved bytes, composes into a frame whose bytes after the Content-ID
// read back as the same string followed by a single trailing NUL.
func TestComposeRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cap := rapid.IntRange(3, 128).Draw(t, "cap")
		maxLen := cap - 3
		s := rapid.StringOfN(rapid.RuneFrom([]rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 .")), 0, maxLen, -1).Draw(t, "payload")

		buf := wire.NewBuffer(cap)
		n := copy(buf.Payload(), s)
		buf.Len = n

		frame := Compose(buf, wire.ContentCmd)

		assert.Equal(t, byte(wire.ContentIDCmdOut), frame[0])
		decodedPayload := frame[1 : 1+n]
		assert.Equal(t, s, string(decodedPayload))
		assert.Equal(t, byte(0x00), frame[1+n], "single trailing NUL")
	})
}
