package msh

import (
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-as4/pkg/compression"
	as4message "github.com/sirosfoundation/go-as4/pkg/message"
	"github.com/sirosfoundation/go-as4/pkg/mime"
	"github.com/sirosfoundation/go-as4/pkg/mpc"
	"github.com/sirosfoundation/go-as4/pkg/pmode"
)

// Result is the outcome of running a header processor.
type Result bool

const (
	// Failure indicates Process returned one or more ebMS error
	// entries.
	Failure Result = false
	// Success indicates state has been populated per the processor's
	// contract and no error entries were returned.
	Success Result = true
)

// MessagingHeaderProcessor extracts, cross-validates, and commits the
// ebMS3 Messaging header to a MessageState. It is the governing
// processor keyed by {.../ebms/v3.0/ns/core/200704/, Messaging} in the
// HeaderProcessorChain.
//
// The processor never panics across its boundary for ebMS-level faults;
// those are returned as a slice of ebMS error entries alongside Failure.
// Structural faults from collaborators (a nil registry, for instance)
// are programming errors and are allowed to propagate as panics from
// the collaborators themselves, not wrapped here.
type MessagingHeaderProcessor struct {
	PModeResolver pmode.Resolver
	MPCRegistry   mpc.Registry
	PullRequests  *PullRequestProcessorRegistry
	ErrorCatalog  *ErrorCatalog
	ResponderAddr string // configured serverAddress, passed as the resolver's responderAddress hint
	Logger        *slog.Logger
}

// NewMessagingHeaderProcessor creates a processor backed by the given
// collaborators. logger may be nil, in which case slog.Default is used.
func NewMessagingHeaderProcessor(resolver pmode.Resolver, mpcRegistry mpc.Registry, pullRequests *PullRequestProcessorRegistry, responderAddr string, logger *slog.Logger) *MessagingHeaderProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessagingHeaderProcessor{
		PModeResolver: resolver,
		MPCRegistry:   mpcRegistry,
		PullRequests:  pullRequests,
		ErrorCatalog:  NewErrorCatalog(),
		ResponderAddr: responderAddr,
		Logger:        logger,
	}
}

// Process runs the full P0-P3 phase sequence described in the package's
// design notes. rawMessaging is the serialized Messaging element as it
// appeared on the wire (used only for Phase P0 re-parsing, since the
// diagnostics a schema-aware parse produces are richer than a plain
// xml.Unmarshal failure); body is the SOAP envelope's Body element, used
// for the body-payload-presence check; attachments is the MIME layer's
// attachment list for this request.
func (p *MessagingHeaderProcessor) Process(rawMessaging []byte, body *as4message.Body, attachments []mime.Payload, state *MessageState) (Result, []as4message.Error) {
	var errs []as4message.Error

	// Phase P0: Parse.
	handler := &as4message.ValidationEventHandler{}
	messaging := as4message.ReadMessaging(rawMessaging, handler)
	if messaging == nil {
		for _, d := range handler.Diagnostics() {
			errs = append(errs, p.ErrorCatalog.New(state.Locale, ErrCodeInvalidHeader, d.Text))
		}
		if len(errs) == 0 {
			errs = append(errs, p.ErrorCatalog.New(state.Locale, ErrCodeInvalidHeader, "Messaging element could not be parsed"))
		}
		return Failure, errs
	}

	// Messaging is the ground-truth structural record; store it
	// unconditionally, even on a later failure, since it is useful for
	// diagnostic emission.
	state.Messaging = messaging

	// Phase P1: Cardinality. Messaging holds one UserMessage field and one
	// SignalMessage field, so u and s are 0 or 1: a second sibling element
	// of the same name is not counted, and the u > 1 and s > 1 checks do
	// not fire.
	u := 0
	if messaging.UserMessage != nil {
		u = 1
	}
	s := 0
	if messaging.SignalMessage != nil {
		s = 1
	}
	if u > 1 || s > 1 || u+s == 0 {
		errs = append(errs, p.ErrorCatalog.New(state.Locale, ErrCodeValueInconsistent, "Messaging must carry exactly one of UserMessage or SignalMessage"))
		return Failure, errs
	}

	if u == 1 {
		return p.processUserMessage(messaging.UserMessage, body, attachments, state)
	}
	return p.processSignalMessage(messaging.SignalMessage, state)
}

func (p *MessagingHeaderProcessor) fail(code, detail string, state *MessageState) (Result, []as4message.Error) {
	return Failure, []as4message.Error{p.ErrorCatalog.New(state.Locale, code, detail)}
}

func (p *MessagingHeaderProcessor) processUserMessage(um *as4message.UserMessage, body *as4message.Body, attachments []mime.Payload, state *MessageState) (Result, []as4message.Error) {
	if um.MessageInfo == nil || um.PartyInfo == nil || um.PartyInfo.From == nil || um.PartyInfo.To == nil || um.CollaborationInfo == nil {
		return p.fail(ErrCodeValueInconsistent, "UserMessage is missing required MessageInfo/PartyInfo/CollaborationInfo", state)
	}

	// 1. Party cardinality.
	if len(um.PartyInfo.From.PartyId) != 1 || len(um.PartyInfo.To.PartyId) != 1 {
		return p.fail(ErrCodeValueInconsistent, "PartyInfo.From/To must carry exactly one PartyId", state)
	}
	initiatorID := um.PartyInfo.From.PartyId[0].Value
	responderID := um.PartyInfo.To.PartyId[0].Value

	// 2. P-Mode resolution.
	var pmodeID string
	if um.CollaborationInfo.AgreementRef != nil {
		pmodeID = um.CollaborationInfo.AgreementRef.Pmode
	}
	pm, ok := p.PModeResolver.Resolve(pmodeID, um.CollaborationInfo.Service.Value, um.CollaborationInfo.Action, initiatorID, responderID, p.ResponderAddr)
	if !ok {
		return p.fail(ErrCodeProcessingModeMismatch, "no P-Mode resolved for this message", state)
	}

	// 3. Leg selection.
	thisID := um.MessageInfo.MessageId
	refID := um.MessageInfo.RefToMessageId
	if refID != "" && refID == thisID {
		p.Logger.Warn("refToMessageId equals messageId", slog.String("message_id", thisID))
	}
	useLeg1 := refID == "" || refID == thisID

	if pm.MEPBinding.RequiredLegs == 2 && pm.Leg2 == nil {
		return p.fail(ErrCodeProcessingModeMismatch, "P-Mode requires two legs but leg2 is absent", state)
	}

	var legNumber int
	var effectiveLeg *pmode.Leg
	if useLeg1 {
		legNumber, effectiveLeg = 1, pm.Leg1
	} else {
		legNumber, effectiveLeg = 2, pm.Leg2
	}
	if effectiveLeg == nil {
		return p.fail(ErrCodeProcessingModeMismatch, "selected leg is absent from the P-Mode", state)
	}

	// 4. MPC validation (config side).
	if effectiveLeg.BusinessInfo != nil && effectiveLeg.BusinessInfo.MPCID != "" {
		if !p.MPCRegistry.Contains(effectiveLeg.BusinessInfo.MPCID) {
			return p.fail(ErrCodeProcessingModeMismatch, "leg's configured MPC is not registered: "+effectiveLeg.BusinessInfo.MPCID, state)
		}
	}

	// 5. Body-payload presence.
	bodyPayloadPresent := body != nil && len(strings.TrimSpace(string(body.Content))) > 0

	// 6. MPC resolution (message side).
	effectiveMPCID := um.Mpc
	if effectiveMPCID == "" && effectiveLeg.BusinessInfo != nil {
		effectiveMPCID = effectiveLeg.BusinessInfo.MPCID
	}
	resolvedMPC, ok := p.MPCRegistry.GetOrDefault(effectiveMPCID)
	if !ok {
		return p.fail(ErrCodeValueInconsistent, "message-side MPC could not be resolved: "+effectiveMPCID, state)
	}

	// 7. Payload/attachment cross-check.
	var parts []as4message.PartInfo
	if um.PayloadInfo != nil {
		parts = um.PayloadInfo.PartInfo
	}
	compressedAttachmentIds := make(map[string]string)

	if len(parts) == 0 {
		if bodyPayloadPresent {
			return p.fail(ErrCodeValueInconsistent, "SOAP body carries a payload but no PartInfo references it", state)
		}
		if len(attachments) > 0 {
			return p.fail(ErrCodeExternalPayloadError, "attachments present but no PartInfo references any of them", state)
		}
	} else {
		if len(attachments) > len(parts) {
			return p.fail(ErrCodeExternalPayloadError, "more attachments than PartInfo entries", state)
		}

		specifiedAttachmentCount := 0
		for i := range parts {
			part := &parts[i]
			if part.Href == "" {
				if !bodyPayloadPresent {
					return p.fail(ErrCodeValueInconsistent, "PartInfo without href requires a SOAP body payload", state)
				}
				continue
			}

			specifiedAttachmentCount++
			attID := strings.TrimPrefix(part.Href, "cid:")
			att := findAttachment(attachments, attID)
			if att == nil {
				// Tolerant by design: a missing attachment is logged, not
				// failed here; decrypt/decompress is authoritative.
				p.Logger.Warn("PartInfo references an unresolved attachment", slog.String("content_id", attID))
			}

			var mimeTypePresent, compressionTypePresent bool
			if part.PartProperties != nil {
				for _, prop := range part.PartProperties.Property {
					switch strings.ToLower(prop.Name) {
					case "mimetype":
						if prop.Value != "" {
							mimeTypePresent = true
						}
					case "compressiontype":
						if prop.Value != "" {
							mode, ok := compression.ParseCompressionType(prop.Value)
							if !ok {
								return p.fail(ErrCodeValueInconsistent, "unrecognized CompressionType: "+prop.Value, state)
							}
							compressedAttachmentIds[attID] = mode
							compressionTypePresent = true
						}
					case "characterset":
						if prop.Value != "" {
							canonical, err := mime.CanonicalCharset(prop.Value)
							if err != nil {
								return p.fail(ErrCodeValueInconsistent, err.Error(), state)
							}
							if att != nil {
								att.CharacterSet = canonical
							}
						}
					}
				}
			}

			if compressionTypePresent && !mimeTypePresent {
				return p.fail(ErrCodeValueInconsistent, "compressed part "+attID+" has no MimeType declaration", state)
			}
		}

		if specifiedAttachmentCount != len(attachments) {
			return p.fail(ErrCodeExternalPayloadError, "PartInfo href count disagrees with attachment count", state)
		}
	}

	// Phase P3: Commit.
	state.PMode = pm
	state.EffectivePModeLeg = EffectivePModeLeg{Number: legNumber, Leg: effectiveLeg}
	state.MPC = resolvedMPC
	state.InitiatorID = initiatorID
	state.ResponderID = responderID
	state.SoapBodyPayloadPresent = bodyPayloadPresent
	state.OriginalAttachments = attachments
	state.CompressedAttachmentIds = compressedAttachmentIds

	return Success, nil
}

func (p *MessagingHeaderProcessor) processSignalMessage(sig *as4message.SignalMessage, state *MessageState) (Result, []as4message.Error) {
	switch {
	case sig.PullRequest != nil:
		if _, ok := p.MPCRegistry.Get(sig.PullRequest.Mpc); !ok {
			return p.fail(ErrCodeValueNotRecognized, "pull request names an unregistered MPC: "+sig.PullRequest.Mpc, state)
		}
		pm, ok := p.PullRequests.Resolve(sig)
		if !ok {
			return p.fail(ErrCodeValueNotRecognized, "no pull-request processor claimed this signal", state)
		}
		state.PMode = pm
		return Success, nil

	case sig.Receipt != nil:
		if sig.MessageInfo == nil || sig.MessageInfo.RefToMessageId == "" {
			return p.fail(ErrCodeInvalidReceipt, "Receipt signal without refToMessageId", state)
		}
		return Success, nil

	default:
		// Error-bearing signal: an incoming error is a terminal
		// observation, not a source of new faults. The original
		// implementation gated a refToMessageInError check behind a
		// literal false; this core keeps that check disabled and only
		// logs each entry for visibility.
		for _, e := range sig.Error {
			p.Logger.Warn("received error signal",
				slog.String("error_code", e.ErrorCode),
				slog.String("severity", e.Severity),
				slog.String("category", e.Category))
		}
		return Success, nil
	}
}

func findAttachment(attachments []mime.Payload, contentID string) *mime.Payload {
	for i := range attachments {
		if strings.TrimPrefix(strings.Trim(attachments[i].ContentID, "<>"), "cid:") == contentID {
			return &attachments[i]
		}
	}
	return nil
}
