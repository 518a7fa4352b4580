// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package display

// =============================================================================
// AUTO-SCROLL
// =============================================================================

// Scroll delay bounds and step, in milliseconds.
const (
	MinScrollDelay  = 100
	MaxScrollDelay  = 2000
	ScrollDelayStep = 100
)

// Direction of the optional autoscroll timer.
type Direction int

const (
	ScrollDown Direction = iota
	ScrollUp
)

// Scroll tracks one tab's scroll policy: follow the bottom while the
// user has not scrolled up, plus the optional fixed-rate scroll timer.
type Scroll struct {
	// followBottom is true while new output should keep the view
	// pinned to the bottom.
	followBottom bool

	// Timer state.
	running   bool
	direction Direction
	delayMs   int
}

// NewScroll returns the default state: following the bottom, timer
// stopped, delay mid-range.
func NewScroll() Scroll {
	return Scroll{followBottom: true, delayMs: 500}
}

// Follow reports whether output should auto-scroll to the bottom.
func (s *Scroll) Follow() bool { return s.followBottom }

// UserScrolledUp records an upward scroll, which disables following
// until the user returns to the bottom or resubmits.
func (s *Scroll) UserScrolledUp() { s.followBottom = false }

// ReachedBottom re-enables following.
func (s *Scroll) ReachedBottom() { s.followBottom = true }

// Resubmit resets the policy at the start of a new exchange.
func (s *Scroll) Resubmit() { s.followBottom = true }

// StartTimer starts the fixed-rate scroll timer in the given direction.
func (s *Scroll) StartTimer(d Direction) {
	s.running = true
	s.direction = d
}

// StopTimer stops the fixed-rate scroll timer.
func (s *Scroll) StopTimer() { s.running = false }

// TimerRunning reports whether the timer is active, and its direction.
func (s *Scroll) TimerRunning() (bool, Direction) {
	return s.running, s.direction
}

// Delay returns the timer period in milliseconds.
func (s *Scroll) Delay() int { return s.delayMs }

// SetDelay sets the timer period, clamped to [MinScrollDelay, MaxScrollDelay].
func (s *Scroll) SetDelay(ms int) {
	if ms < MinScrollDelay {
		ms = MinScrollDelay
	}
	if ms > MaxScrollDelay {
		ms = MaxScrollDelay
	}
	s.delayMs = ms
}

// AdjustDelay nudges the period by one step: faster shrinks the delay,
// slower grows it.
func (s *Scroll) AdjustDelay(faster bool) {
	if faster {
		s.SetDelay(s.delayMs - ScrollDelayStep)
	} else {
		s.SetDelay(s.delayMs + ScrollDelayStep)
	}
}
