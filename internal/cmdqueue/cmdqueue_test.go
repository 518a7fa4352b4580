// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cmdqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCommand(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/clear", true},
		{"  /clear  ", true},
		{"/2fast", false},
		{"//clear", false},
		{"clear", false},
		{"/", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCommand(tt.in, "/"), tt.in)
	}
}

func TestParseInvocation(t *testing.T) {
	items := ParseInvocation("/tab 2 & /sleep 0.5 & /selectall", "/", "&")
	require.Len(t, items, 3)
	assert.Equal(t, Item{Cmd: "tab", Arg: "2"}, items[0])
	assert.Equal(t, Item{Cmd: "sleep", Arg: "0.5"}, items[1])
	assert.Equal(t, Item{Cmd: "selectall", Arg: ""}, items[2])
}

func TestParseInvocationAndCharInArgument(t *testing.T) {
	items := ParseInvocation("/say tom & jerry & /clear", "/", "&")
	require.Len(t, items, 2)
	assert.Equal(t, Item{Cmd: "say", Arg: "tom & jerry"}, items[0])
	assert.Equal(t, Item{Cmd: "clear", Arg: ""}, items[1])
}

func TestCoercion(t *testing.T) {
	var got Arg
	_ = got
	reg := NewRegistry()
	reg.Register(Command{Name: "n", Type: ArgInt, Action: func(a Arg) { got = a }})
	reg.Register(Command{Name: "f", Type: ArgFloat, Action: func(a Arg) { got = a }})
	reg.Register(Command{Name: "force", Type: ArgForce, Action: func(a Arg) { got = a }})
	reg.Register(Command{Name: "need", ArgRequired: true, Action: func(a Arg) { got = a }})

	cmd, _ := reg.Get("n")
	arg, ok := cmd.coerce("42", nil)
	require.True(t, ok)
	assert.Equal(t, 42, arg.Int)
	_, ok = cmd.coerce("x", nil)
	assert.False(t, ok)

	cmd, _ = reg.Get("f")
	arg, ok = cmd.coerce("0.5", nil)
	require.True(t, ok)
	assert.Equal(t, 0.5, arg.Float)

	cmd, _ = reg.Get("force")
	arg, ok = cmd.coerce("force", nil)
	require.True(t, ok)
	assert.True(t, arg.Force)
	arg, ok = cmd.coerce("", nil)
	require.True(t, ok)
	assert.False(t, arg.Force)
	_, ok = cmd.coerce("yes", nil)
	assert.False(t, ok, "only the literal word force is true")

	cmd, _ = reg.Get("need")
	_, ok = cmd.coerce("", nil)
	assert.False(t, ok, "required argument missing")
}

func TestStringArgSubstitution(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.Register(Command{Name: "say", Action: func(a Arg) { got = a.Str }})

	d := NewDispatcher(reg, DispatchOptions{
		Subst: func(s string) string { return s + "!" },
	})
	require.True(t, d.Submit("/say hello"))
	d.Tick()
	assert.Equal(t, "hello!", got)
}

func ticksFor(ms int) int { return ms / TickMs }

func TestSleepDelaysNextItem(t *testing.T) {
	reg := NewRegistry()
	var order []string
	reg.Register(Command{Name: "a", Action: func(Arg) { order = append(order, "a") }})
	reg.Register(Command{Name: "b", Action: func(Arg) { order = append(order, "b") }})

	d := NewDispatcher(reg, DispatchOptions{})
	require.True(t, d.Submit("/a & /sleep 0.5 & /b"))

	d.Tick() // runs a
	assert.Equal(t, []string{"a"}, order)
	d.Tick() // pops sleep, sets wait
	assert.Equal(t, []string{"a"}, order)

	for i := 0; i < ticksFor(500); i++ {
		d.Tick()
	}
	assert.Equal(t, []string{"a"}, order, "b waits out the full delay")
	d.Tick()
	assert.Equal(t, []string{"a", "b"}, order)
	assert.False(t, d.Pending())
}

func TestSleepDefaultOneSecond(t *testing.T) {
	assert.Equal(t, 1000, sleepMs(""))
	assert.Equal(t, 1000, sleepMs("junk"))
	assert.Equal(t, 250, sleepMs("0.25"))
	assert.Equal(t, 3000, sleepMs("3"))
}

func TestQueuesRunInOrder(t *testing.T) {
	reg := NewRegistry()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		n := name
		reg.Register(Command{Name: n, Action: func(Arg) { order = append(order, n) }})
	}

	d := NewDispatcher(reg, DispatchOptions{})
	d.Submit("/a & /b")
	d.Submit("/c")

	d.Tick()
	assert.Equal(t, []string{"a", "c"}, order, "one item per queue per tick")
	d.Tick()
	assert.Equal(t, []string{"a", "c", "b"}, order)
}

func TestAliasExpansion(t *testing.T) {
	reg := NewRegistry()
	var order []string
	reg.Register(Command{Name: "clear", Action: func(Arg) { order = append(order, "clear") }})
	reg.Register(Command{Name: "top", Action: func(Arg) { order = append(order, "top") }})

	d := NewDispatcher(reg, DispatchOptions{
		Aliases: map[string]string{"fresh": "/clear & /top"},
	})
	require.True(t, d.Submit("/fresh"))

	d.Tick()
	d.Tick()
	assert.Equal(t, []string{"clear", "top"}, order)
}

func TestAliasLoopBounded(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(reg, DispatchOptions{
		Aliases: map[string]string{"loop": "/loop"},
	})
	require.True(t, d.Submit("/loop"))
	for i := 0; i < 5; i++ {
		d.Tick()
	}
	assert.False(t, d.Pending(), "self-referential alias drained, not spinning")
}

func TestFuzzyDispatch(t *testing.T) {
	reg := NewRegistry()
	ran := false
	reg.Register(Command{Name: "clear", Action: func(Arg) { ran = true }})

	d := NewDispatcher(reg, DispatchOptions{})
	d.Submit("/claer")
	d.Tick()
	assert.True(t, ran, "misspelling above the threshold dispatches")

	ran = false
	d.Submit("/zzzz")
	d.Tick()
	assert.False(t, ran, "unrelated name drops silently")
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, SimilarityRatio("clear", "clear"))
	assert.InDelta(t, 0.8, SimilarityRatio("claer", "clear"), 0.001)
	assert.Equal(t, 0.0, SimilarityRatio("xyz", "clear"))
	assert.Equal(t, 1.0, SimilarityRatio("", ""))
}

func TestBestMatch(t *testing.T) {
	names := []string{"clear", "close", "copy"}
	got, ok := BestMatch("claer", names, 0.7)
	require.True(t, ok)
	assert.Equal(t, "clear", got)

	_, ok = BestMatch("q", names, 0.7)
	assert.False(t, ok)
}

func TestPalette(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Command{Name: "clear", Info: "empty the tab"})
	reg.Register(Command{Name: "close", Info: "close the tab"})
	reg.Register(Command{Name: "debug", Info: "internal", SkipPalette: true})

	p := NewPalette(reg, nil)

	all := p.Entries("")
	require.Len(t, all, 2)
	assert.Equal(t, "clear", all[0].Name)
	assert.Equal(t, "empty the tab", all[0].Info)

	got := p.Entries("clr")
	require.NotEmpty(t, got)
	assert.Equal(t, "clear", got[0].Name)

	for _, e := range append(all, got...) {
		assert.NotEqual(t, "debug", e.Name)
	}
}
