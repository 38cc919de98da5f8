package msh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	as4message "github.com/sirosfoundation/go-as4/pkg/message"
	"github.com/sirosfoundation/go-as4/pkg/mime"
	"github.com/sirosfoundation/go-as4/pkg/mpc"
	"github.com/sirosfoundation/go-as4/pkg/pmode"
)

func newTestProcessor(t *testing.T, pm *pmode.ProcessingMode) (*MessagingHeaderProcessor, *mpc.InMemoryRegistry) {
	t.Helper()
	resolver := pmode.NewStaticResolver()
	resolver.Register(pm)

	registry := mpc.NewInMemoryRegistry()

	return NewMessagingHeaderProcessor(resolver, registry, NewPullRequestProcessorRegistry(), "https://gateway.example.com/as4", nil), registry
}

func oneLegPMode(id string) *pmode.ProcessingMode {
	return &pmode.ProcessingMode{
		ID:  id,
		MEP: as4message.MEPOneWay,
		MEPBinding: pmode.MEPBindingInfo{
			URI:          as4message.MEPBindingPush,
			RequiredLegs: 1,
		},
		Service: "http://example.com/service",
		Action:  "submit",
		Leg1: &pmode.Leg{
			Protocol:     &pmode.Protocol{SOAPVersion: "1.2"},
			BusinessInfo: &pmode.BusinessInfo{},
		},
	}
}

func userMessageXML(messageID, refToMessageID, pmodeID, service, action string) []byte {
	ref := ""
	if refToMessageID != "" {
		ref = "<RefToMessageId>" + refToMessageID + "</RefToMessageId>"
	}
	agreement := ""
	if pmodeID != "" {
		agreement = `<AgreementRef pmode="` + pmodeID + `"></AgreementRef>`
	}
	return []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
  <UserMessage>
    <MessageInfo><Timestamp>2026-08-06T00:00:00Z</Timestamp><MessageId>` + messageID + `</MessageId>` + ref + `</MessageInfo>
    <PartyInfo>
      <From><PartyId>initiator</PartyId><Role>sender</Role></From>
      <To><PartyId>responder</PartyId><Role>receiver</Role></To>
    </PartyInfo>
    <CollaborationInfo>
      ` + agreement + `
      <Service>` + service + `</Service>
      <Action>` + action + `</Action>
      <ConversationId>conv-1</ConversationId>
    </CollaborationInfo>
  </UserMessage>
</Messaging>`)
}

// Scenario 1: minimal valid UserMessage, no payload, no attachments.
func TestProcess_MinimalUserMessage_Succeeds(t *testing.T) {
	pm := oneLegPMode("P1")
	processor, _ := newTestProcessor(t, pm)

	raw := userMessageXML("msg-1", "", "P1", pm.Service, pm.Action)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Success, result)
	assert.Empty(t, errs)
	assert.Equal(t, "P1", state.PMode.ID)
	assert.False(t, state.SoapBodyPayloadPresent)
	assert.Empty(t, state.CompressedAttachmentIds)
	assert.Equal(t, 1, state.EffectivePModeLeg.Number)
}

// Scenario 2: UserMessage with one gzipped attachment.
func TestProcess_GzippedAttachment_Succeeds(t *testing.T) {
	pm := oneLegPMode("P2")
	processor, _ := newTestProcessor(t, pm)

	raw := []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
  <UserMessage>
    <MessageInfo><Timestamp>2026-08-06T00:00:00Z</Timestamp><MessageId>msg-2</MessageId></MessageInfo>
    <PartyInfo>
      <From><PartyId>initiator</PartyId><Role>sender</Role></From>
      <To><PartyId>responder</PartyId><Role>receiver</Role></To>
    </PartyInfo>
    <CollaborationInfo>
      <AgreementRef pmode="P2"></AgreementRef>
      <Service>` + pm.Service + `</Service>
      <Action>` + pm.Action + `</Action>
      <ConversationId>conv-1</ConversationId>
    </CollaborationInfo>
    <PayloadInfo>
      <PartInfo href="cid:att-1">
        <PartProperties>
          <Property name="MimeType">application/xml</Property>
          <Property name="CompressionType">application/gzip</Property>
        </PartProperties>
      </PartInfo>
    </PayloadInfo>
  </UserMessage>
</Messaging>`)

	attachments := []mime.Payload{{ContentID: "<att-1>", Data: []byte("compressed")}}
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, attachments, state)

	require.Equal(t, Success, result)
	assert.Empty(t, errs)
	assert.Equal(t, map[string]string{"att-1": "application/gzip"}, state.CompressedAttachmentIds)
}

// Scenario 3: compressed attachment missing MimeType fails with EBMS:0004.
func TestProcess_CompressedAttachmentMissingMimeType_Fails(t *testing.T) {
	pm := oneLegPMode("P3")
	processor, _ := newTestProcessor(t, pm)

	raw := []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
  <UserMessage>
    <MessageInfo><Timestamp>2026-08-06T00:00:00Z</Timestamp><MessageId>msg-3</MessageId></MessageInfo>
    <PartyInfo>
      <From><PartyId>initiator</PartyId><Role>sender</Role></From>
      <To><PartyId>responder</PartyId><Role>receiver</Role></To>
    </PartyInfo>
    <CollaborationInfo>
      <AgreementRef pmode="P3"></AgreementRef>
      <Service>` + pm.Service + `</Service>
      <Action>` + pm.Action + `</Action>
      <ConversationId>conv-1</ConversationId>
    </CollaborationInfo>
    <PayloadInfo>
      <PartInfo href="cid:att-1">
        <PartProperties>
          <Property name="CompressionType">application/gzip</Property>
        </PartProperties>
      </PartInfo>
    </PayloadInfo>
  </UserMessage>
</Messaging>`)

	attachments := []mime.Payload{{ContentID: "<att-1>", Data: []byte("compressed")}}
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, attachments, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeValueInconsistent, errs[0].ErrorCode)
}

// Phase P1 cardinality: a Messaging element with neither UserMessage nor
// SignalMessage fails with EBMS:0004.
func TestProcess_EmptyMessaging_Fails(t *testing.T) {
	pm := oneLegPMode("P4")
	processor, _ := newTestProcessor(t, pm)

	// encoding/xml only populates the last occurrence of a non-slice
	// field, so two <UserMessage> siblings still deserialize into a
	// single non-nil UserMessage with u==1; to exercise Phase P1's
	// u>1 branch directly, construct the state of affairs the contract
	// actually guards: a Messaging struct that reports u+s other than 1.
	// Since this core's own type cannot hold two UserMessages, test the
	// equivalent case the cardinality check also rejects: neither
	// UserMessage nor SignalMessage present.
	raw := []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/"></Messaging>`)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeValueInconsistent, errs[0].ErrorCode)
	_ = pm
}

// Scenario 5: PullRequest with an MPC not in the registry fails with EBMS:0003.
func TestProcess_PullRequestUnknownMPC_Fails(t *testing.T) {
	pm := oneLegPMode("P5")
	processor, _ := newTestProcessor(t, pm)

	raw := []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
  <SignalMessage>
    <MessageInfo><Timestamp>2026-08-06T00:00:00Z</Timestamp><MessageId>sig-1</MessageId></MessageInfo>
    <PullRequest mpc="urn:example:unknown"></PullRequest>
  </SignalMessage>
</Messaging>`)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeValueNotRecognized, errs[0].ErrorCode)
}

// Scenario 6: Receipt signal with an empty refToMessageId fails with EBMS:0006.
func TestProcess_ReceiptWithoutRefToMessageId_Fails(t *testing.T) {
	pm := oneLegPMode("P6")
	processor, _ := newTestProcessor(t, pm)

	raw := []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
  <SignalMessage>
    <MessageInfo><Timestamp>2026-08-06T00:00:00Z</Timestamp><MessageId>sig-2</MessageId></MessageInfo>
    <Receipt></Receipt>
  </SignalMessage>
</Messaging>`)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeInvalidReceipt, errs[0].ErrorCode)
}

func TestProcess_LegSelection_RefToMessageIdSelectsLeg2(t *testing.T) {
	pm := oneLegPMode("P7")
	pm.MEPBinding.RequiredLegs = 2
	pm.Leg2 = &pmode.Leg{
		Protocol:     &pmode.Protocol{SOAPVersion: "1.2"},
		BusinessInfo: &pmode.BusinessInfo{},
	}
	processor, _ := newTestProcessor(t, pm)

	raw := userMessageXML("msg-8", "original-msg", "P7", pm.Service, pm.Action)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Success, result)
	assert.Empty(t, errs)
	assert.Equal(t, 2, state.EffectivePModeLeg.Number)
}

func TestProcess_TwoLegPModeMissingLeg2_Fails(t *testing.T) {
	pm := oneLegPMode("P8")
	pm.MEPBinding.RequiredLegs = 2
	processor, _ := newTestProcessor(t, pm)

	raw := userMessageXML("msg-9", "", "P8", pm.Service, pm.Action)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeProcessingModeMismatch, errs[0].ErrorCode)
}

func TestProcess_MPCPrecedence_MessageMPCWinsOverLegMPC(t *testing.T) {
	pm := oneLegPMode("P9")
	pm.Leg1.BusinessInfo.MPCID = "urn:example:leg-mpc"
	processor, registry := newTestProcessor(t, pm)
	registry.Register("urn:example:leg-mpc")
	registry.Register("urn:example:message-mpc")

	raw := []byte(`<Messaging xmlns="http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/">
  <UserMessage mpc="urn:example:message-mpc">
    <MessageInfo><Timestamp>2026-08-06T00:00:00Z</Timestamp><MessageId>msg-10</MessageId></MessageInfo>
    <PartyInfo>
      <From><PartyId>initiator</PartyId><Role>sender</Role></From>
      <To><PartyId>responder</PartyId><Role>receiver</Role></To>
    </PartyInfo>
    <CollaborationInfo>
      <AgreementRef pmode="P9"></AgreementRef>
      <Service>` + pm.Service + `</Service>
      <Action>` + pm.Action + `</Action>
      <ConversationId>conv-1</ConversationId>
    </CollaborationInfo>
  </UserMessage>
</Messaging>`)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Success, result)
	assert.Empty(t, errs)
	assert.Equal(t, "urn:example:message-mpc", state.MPC.ID)
}

func TestProcess_AttachmentsWithoutPartInfo_Fails(t *testing.T) {
	pm := oneLegPMode("P10")
	processor, _ := newTestProcessor(t, pm)

	raw := userMessageXML("msg-11", "", "P10", pm.Service, pm.Action)
	attachments := []mime.Payload{{ContentID: "<att-1>", Data: []byte("x")}}
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, attachments, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeExternalPayloadError, errs[0].ErrorCode)
}

func TestProcess_UnresolvablePMode_Fails(t *testing.T) {
	pm := oneLegPMode("P11")
	processor, _ := newTestProcessor(t, pm)

	raw := userMessageXML("msg-12", "", "does-not-exist", pm.Service, pm.Action)
	state := NewMessageState()

	result, errs := processor.Process(raw, &as4message.Body{}, nil, state)

	require.Equal(t, Failure, result)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeProcessingModeMismatch, errs[0].ErrorCode)
}
