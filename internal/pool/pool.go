// ABOUTME: Fixed-size pool of mixer channel indices
// ABOUTME: Hands out free channels in least-recently-freed order
package pool

import (
	"errors"
	"fmt"
	"sync"
)

// Empty is returned by Claim when no channel can be handed out
const Empty = -1

var (
	// ErrOutOfRange is returned when releasing a channel outside [0, size)
	ErrOutOfRange = errors.New("channel out of range")

	// ErrNotClaimed is returned when releasing a channel that is already free
	ErrNotClaimed = errors.New("channel not claimed")
)

// Policy decides whether a claim may take a channel given the free count
type Policy int

const (
	// ClaimAny hands out every channel
	ClaimAny Policy = iota

	// ReserveLast refuses to hand out the last free channel, so one
	// channel is never used
	ReserveLast
)

func (p Policy) String() string {
	switch p {
	case ClaimAny:
		return "claim-any"
	case ReserveLast:
		return "reserve-last"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

func (p Policy) allows(free int) bool {
	if p == ReserveLast {
		return free > 1
	}
	return free > 0
}

// Pool tracks which of size channels are free
type Pool struct {
	mu     sync.Mutex
	size   int
	policy Policy
	free   []int
	busy   []bool
}

// New creates a pool of size channels, all free, in ascending order
func New(size int, policy Policy) *Pool {
	if size < 0 {
		size = 0
	}

	p := &Pool{
		size:   size,
		policy: policy,
		free:   make([]int, 0, size),
		busy:   make([]bool, size),
	}
	for ch := 0; ch < size; ch++ {
		p.free = append(p.free, ch)
	}
	return p
}

// Claim takes the least-recently-freed channel, or returns Empty
func (p *Pool) Claim() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.policy.allows(len(p.free)) {
		return Empty
	}

	ch := p.free[0]
	p.free = p.free[1:]
	p.busy[ch] = true
	return ch
}

// Release returns a claimed channel to the back of the free queue
func (p *Pool) Release(ch int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch < 0 || ch >= p.size {
		return fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, ch, p.size)
	}
	if !p.busy[ch] {
		return fmt.Errorf("%w: %d", ErrNotClaimed, ch)
	}

	p.busy[ch] = false
	p.free = append(p.free, ch)
	return nil
}

// IsFullyIdle reports whether every channel is free
func (p *Pool) IsFullyIdle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free) == p.size
}

// Free returns the number of free channels
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Busy returns the number of claimed channels
func (p *Pool) Busy() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size - len(p.free)
}

// Counts returns the free and busy counts from one consistent snapshot
func (p *Pool) Counts() (free, busy int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free), p.size - len(p.free)
}

// Size returns the total number of channels
func (p *Pool) Size() int {
	return p.size
}

// Policy returns the claim policy
func (p *Pool) Policy() Policy {
	return p.policy
}

// Snapshot returns the free channels in claim order
func (p *Pool) Snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]int, len(p.free))
	copy(out, p.free)
	return out
}

// BusyChannels returns a per-channel occupancy map
func (p *Pool) BusyChannels() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]bool, len(p.busy))
	copy(out, p.busy)
	return out
}
