package msh

import (
	"encoding/xml"

	as4message "github.com/sirosfoundation/go-as4/pkg/message"
	"github.com/sirosfoundation/go-as4/pkg/mime"
)

// HeaderProcessor is the capability any SOAP header processor exposes to
// the chain: given the raw header element bytes and the shared request
// state, report success or a list of ebMS errors.
type HeaderProcessor interface {
	Process(raw []byte, body *as4message.Body, attachments []mime.Payload, state *MessageState) (Result, []as4message.Error)
}

// MessagingQName is the qualified name of the header element the
// MessagingHeaderProcessor is registered under.
var MessagingQName = xml.Name{
	Space: "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/",
	Local: "Messaging",
}

// HeaderProcessorChain dispatches SOAP header elements to the processor
// registered for their qualified name, invoking them in the order the
// headers appear in the envelope. A failure from any processor
// short-circuits the remaining chain; already-accumulated state on
// MessageState is preserved for diagnostic emission.
type HeaderProcessorChain struct {
	processors map[xml.Name]HeaderProcessor
}

// NewHeaderProcessorChain creates an empty chain.
func NewHeaderProcessorChain() *HeaderProcessorChain {
	return &HeaderProcessorChain{processors: make(map[xml.Name]HeaderProcessor)}
}

// Register associates a processor with a header element's qualified name.
func (c *HeaderProcessorChain) Register(name xml.Name, processor HeaderProcessor) {
	c.processors[name] = processor
}

// HeaderElement is one SOAP header element as it appeared on the wire,
// in document order.
type HeaderElement struct {
	Name xml.Name
	Raw  []byte
}

// Run dispatches each header element in order. It stops at the first
// processor that reports Failure.
func (c *HeaderProcessorChain) Run(headers []HeaderElement, body *as4message.Body, attachments []mime.Payload, state *MessageState) (Result, []as4message.Error) {
	for _, h := range headers {
		processor, ok := c.processors[h.Name]
		if !ok {
			continue
		}
		result, errs := processor.Process(h.Raw, body, attachments, state)
		if result == Failure {
			return Failure, errs
		}
	}
	return Success, nil
}
