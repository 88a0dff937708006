package shadowstack

import "github.com/parallelthreads/shadowstack/internal/gls"

// SetSuspendedContext stores a continuation captured mid-flight, to be
// retrieved once by GetAndClearSuspendedContinuation. This one-shot hand-off
// lets the continuation host carry a continuation value across the
// fiber/continuation boundary without threading it through every frame.
func (s *Stack) SetSuspendedContext(context any) {
	s.suspendedContext = context
}

// GetAndClearSuspendedContinuation returns the continuation stored by the
// most recent SetSuspendedContext call and clears the slot.
func (s *Stack) GetAndClearSuspendedContinuation() any {
	c := s.suspendedContext
	s.suspendedContext = nil
	return c
}

// Provider resolves "the stack for the current computation" from the
// perspective of one external collaborator (a continuation host or a fiber
// scheduler). It returns nil when that collaborator has no opinion, so
// GetStack can fall through to the next link in the chain.
type Provider func() *Stack

var (
	continuationProvider Provider
	fiberProvider        Provider
)

// RegisterContinuationProvider attaches the continuation host's lookup of
// "the current continuation's stack" to GetStack's resolution chain. Passing
// nil detaches any previously registered provider.
func RegisterContinuationProvider(p Provider) {
	continuationProvider = p
}

// RegisterFiberProvider attaches the fiber scheduler's lookup of "the
// current fiber's stack" to GetStack's resolution chain. Passing nil
// detaches any previously registered provider.
func RegisterFiberProvider(p Provider) {
	fiberProvider = p
}

// GetStack resolves the stack for the current computation by consulting, in
// order: a registered continuation provider, a registered fiber provider,
// and finally a goroutine-local default. Resolving "the current computation"
// beyond that default is the responsibility of external collaborators; this
// function is only the static resolver they attach to.
func GetStack() *Stack {
	if continuationProvider != nil {
		if st := continuationProvider(); st != nil {
			return st
		}
	}
	if fiberProvider != nil {
		if st := fiberProvider(); st != nil {
			return st
		}
	}
	return defaultStack()
}

func defaultStack() *Stack {
	g := gls.Current()
	if st, ok := g.Load().(*Stack); ok {
		return st
	}
	st := NewStack(nil, initialMethodStackDepth)
	g.Store(st)
	return st
}
