package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRejectsPipeAndEmptyAndNilHandler(t *testing.T) {
	r := New(0)
	assert.True(t, r.Register("ping", "", "", "", func(string, *ReplyWriter) {}))
	assert.False(t, r.Register("bad|id", "", "", "", func(string, *ReplyWriter) {}))
	assert.False(t, r.Register("", "", "", "", func(string, *ReplyWriter) {}))
	assert.False(t, r.Register("noop", "", "", "", nil))
}

func TestRegisterFailsWhenFull(t *testing.T) {
	r := New(MinCapacity)
	for i := 0; i < MinCapacity; i++ {
		assert.True(t, r.Register(string(rune('a'+i%26))+string(rune(i)), "", "", "", func(string, *ReplyWriter) {}))
	}
	assert.False(t, r.Register("overflow", "", "", "", func(string, *ReplyWriter) {}))
}

func TestLookupMatchesIdWithSeparator(t *testing.T) {
	r := New(0)
	var gotArgs string
	r.Register("levelLogSys", "lls", "", "", func(args string, w *ReplyWriter) { gotArgs = args })

	e, args, ok := r.Lookup("levelLogSys 4")
	assert.True(t, ok)
	assert.Equal(t, "4", args)
	e.Handler(args, nil)
	assert.Equal(t, "4", gotArgs)
}

func TestLookupMatchesShortcut(t *testing.T) {
	r := New(0)
	r.Register("infoHelp", "?", "", "", func(string, *ReplyWriter) {})

	_, args, ok := r.Lookup("?")
	assert.True(t, ok)
	assert.Equal(t, "", args)
}

func TestLookupRequiresTokenBoundary(t *testing.T) {
	r := New(0)
	r.Register("ping", "", "", "", func(string, *ReplyWriter) {})

	_, _, ok := r.Lookup("pingpong")
	assert.False(t, ok, "pingpong must not match ping as a prefix without a boundary")
}

func TestLookupNoMatch(t *testing.T) {
	r := New(0)
	r.Register("ping", "", "", "", func(string, *ReplyWriter) {})

	_, _, ok := r.Lookup("unknown")
	assert.False(t, ok)
}

func TestLookupDoesNotSpuriouslyMatchShorterPrefix(t *testing.T) {
	r := New(0)
	var calledFirst, calledSecond bool
	r.Register("sys", "", "", "", func(string, *ReplyWriter) { calledFirst = true })
	r.Register("sysUptime", "", "", "", func(string, *ReplyWriter) { calledSecond = true })

	// "sys" is a textual prefix of "sysUptime" but not a token boundary
	// match, so the registered "sys" entry must not win here.
	e, _, ok := r.Lookup("sysUptime")
	assert.True(t, ok)
	e.Handler("", nil)
	assert.False(t, calledFirst)
	assert.True(t, calledSecond)
}
