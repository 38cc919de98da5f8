package msh

import (
	"golang.org/x/text/language"

	"github.com/sirosfoundation/go-as4/pkg/message"
	"github.com/sirosfoundation/go-as4/pkg/mime"
	"github.com/sirosfoundation/go-as4/pkg/mpc"
	"github.com/sirosfoundation/go-as4/pkg/pmode"
)

// EffectivePModeLeg records which leg of a P-Mode governs the message
// currently being processed, alongside the leg itself.
type EffectivePModeLeg struct {
	Number int // 1 or 2
	Leg    *pmode.Leg
}

// MessageState is the per-request accumulator the header processor chain
// populates. It is created empty when an envelope is received, mutated
// in place by each processor in the chain, and discarded once the
// response for the request has been written. A MessageState is never
// shared across concurrent requests.
type MessageState struct {
	Locale language.Tag

	Messaging *message.Messaging

	PMode             *pmode.ProcessingMode
	EffectivePModeLeg EffectivePModeLeg
	MPC               mpc.MPC
	InitiatorID       string
	ResponderID       string

	SoapBodyPayloadPresent bool

	OriginalSoapDocument []byte
	OriginalAttachments  []mime.Payload

	// CompressedAttachmentIds maps an attachment's content-id to the
	// compression scheme declared for it (currently always gzip, the
	// only recognized value).
	CompressedAttachmentIds map[string]string
}

// NewMessageState creates an empty state ready for a single request.
func NewMessageState() *MessageState {
	return &MessageState{
		Locale:                  language.English,
		CompressedAttachmentIds: make(map[string]string),
	}
}
