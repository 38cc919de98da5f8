package msh

import (
	"sync"

	"github.com/sirosfoundation/go-as4/pkg/message"
	"github.com/sirosfoundation/go-as4/pkg/pmode"
)

// PullRequestProcessor is the capability a pull-request SPI
// implementation exposes: given a signal message carrying a
// PullRequest, decide which P-Mode governs it. A processor that has
// nothing to say about the signal returns (nil, false) rather than an
// error; only the registry decides that "nobody claimed it" is a
// failure.
type PullRequestProcessor interface {
	Process(signal *message.SignalMessage) (*pmode.ProcessingMode, bool)
}

// PullRequestProcessorFunc adapts a plain function to PullRequestProcessor.
type PullRequestProcessorFunc func(signal *message.SignalMessage) (*pmode.ProcessingMode, bool)

// Process implements PullRequestProcessor.
func (f PullRequestProcessorFunc) Process(signal *message.SignalMessage) (*pmode.ProcessingMode, bool) {
	return f(signal)
}

// PullRequestProcessorRegistry holds an ordered set of processors.
// Resolve tries each in registration order and returns the first
// non-empty result, matching the "first non-empty wins" polymorphism
// called for by the tagged-capability style rather than a class
// hierarchy.
type PullRequestProcessorRegistry struct {
	mu         sync.RWMutex
	processors []PullRequestProcessor
}

// NewPullRequestProcessorRegistry creates an empty registry.
func NewPullRequestProcessorRegistry() *PullRequestProcessorRegistry {
	return &PullRequestProcessorRegistry{}
}

// Register appends a processor to the end of the resolution order.
func (r *PullRequestProcessorRegistry) Register(p PullRequestProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors = append(r.processors, p)
}

// Resolve queries registered processors in order and returns the first
// P-Mode claimed for the signal.
func (r *PullRequestProcessorRegistry) Resolve(signal *message.SignalMessage) (*pmode.ProcessingMode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.processors {
		if pm, ok := p.Process(signal); ok {
			return pm, true
		}
	}
	return nil, false
}
