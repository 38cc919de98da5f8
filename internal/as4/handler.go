// Package as4 provides AS4 message handling for the multi-tenant server.
//
// This package implements the OASIS ebMS3/AS4 profile for reliable,
// secure message exchange. It handles:
//
//   - Inbound message reception and validation
//   - Outbound message construction and signing
//   - ebMS3 SOAP envelope parsing and generation
//   - WS-Security signature creation and verification
//   - Receipt generation (signed or unsigned)
//   - Multi-tenant routing based on receiver party ID
//
// # Message Flow (Inbound)
//
//  1. HTTP POST received with MIME multipart body
//  2. SOAP envelope extracted and parsed
//  3. Tenant taken from the request path
//  4. WS-Security header checked for an X509Certificate and a Signature element
//  5. Message metadata and payload references persisted to storage (payload bytes are not stored)
//  6. Receipt generated and returned
//
// # Message Flow (Outbound)
//
//  1. Message created via JMAP or REST API with status "pending"
//  2. Sender worker picks up pending messages
//  3. Recipient endpoint resolved via SMP/BDXL discovery
//  4. SOAP envelope constructed with ebMS3 headers
//  5. Message signed with tenant's signing key
//  6. HTTP POST sent to recipient AS4 endpoint
//  7. HTTP response status checked (the receipt in the response is not parsed
//     or validated) and message status updated by the sender worker
package as4

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/sirosfoundation/go-as4/internal/keystore"
	"github.com/sirosfoundation/go-as4/internal/storage"
	as4message "github.com/sirosfoundation/go-as4/pkg/message"
	as4mime "github.com/sirosfoundation/go-as4/pkg/mime"
	"github.com/sirosfoundation/go-as4/pkg/mpc"
	"github.com/sirosfoundation/go-as4/pkg/msh"
	"github.com/sirosfoundation/go-as4/pkg/pmode"
	"github.com/sirosfoundation/go-as4/pkg/security"
)

// Handler processes AS4 messages for a tenant
type Handler struct {
	messageStore    MessageStore
	payloadStore    PayloadStore
	tenantStore     TenantStore
	signerProvider  keystore.SignerProvider
	headerProcessor *msh.MessagingHeaderProcessor
	logger          *slog.Logger
}

// MessageStore provides message persistence
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *storage.Message) error
	GetMessageByAS4ID(ctx context.Context, tenantID, as4MessageID string) (*storage.Message, error)
	UpdateMessage(ctx context.Context, msg *storage.Message) error
	UpdateMessageStatus(ctx context.Context, tenantID, id string, status storage.MessageStatus) error
}

// PayloadStore provides payload persistence
type PayloadStore interface {
	StorePayload(ctx context.Context, tenantID string, payload *storage.PayloadData) (string, error)
	GetPayload(ctx context.Context, tenantID, id string) (*storage.PayloadData, error)
}

// TenantStore provides tenant lookup
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*storage.Tenant, error)
}

// Config holds handler configuration
type Config struct {
	MessageStore   MessageStore
	PayloadStore   PayloadStore
	TenantStore    TenantStore
	SignerProvider keystore.SignerProvider
	PModeResolver  pmode.Resolver
	MPCRegistry    mpc.Registry
	PullRequests   *msh.PullRequestProcessorRegistry
	ServerAddress  string
	Logger         *slog.Logger
}

// NewHandler creates a new AS4 handler
func NewHandler(cfg *Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pmodeResolver := cfg.PModeResolver
	if pmodeResolver == nil {
		pmodeResolver = pmode.NewStaticResolver()
	}
	mpcRegistry := cfg.MPCRegistry
	if mpcRegistry == nil {
		mpcRegistry = mpc.NewInMemoryRegistry()
	}
	pullRequests := cfg.PullRequests
	if pullRequests == nil {
		pullRequests = msh.NewPullRequestProcessorRegistry()
	}

	return &Handler{
		messageStore:    cfg.MessageStore,
		payloadStore:    cfg.PayloadStore,
		tenantStore:     cfg.TenantStore,
		signerProvider:  cfg.SignerProvider,
		headerProcessor: msh.NewMessagingHeaderProcessor(pmodeResolver, mpcRegistry, pullRequests, cfg.ServerAddress, logger),
		logger:          logger,
	}
}

// HandleInbound processes an incoming AS4 message
func (h *Handler) HandleInbound(ctx context.Context, tenantID string, r *http.Request) (*InboundResult, error) {
	log := h.logger.With(slog.String("tenant_id", tenantID))

	// Parse multipart/related content
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/related") {
		return nil, fmt.Errorf("invalid content type: expected multipart/related")
	}

	// Extract boundary from content type
	boundary := extractBoundary(contentType)
	if boundary == "" {
		return nil, fmt.Errorf("missing boundary in content type")
	}

	mr := multipart.NewReader(r.Body, boundary)

	// Read SOAP envelope (first part)
	envelopePart, err := mr.NextPart()
	if err != nil {
		return nil, fmt.Errorf("reading envelope part: %w", err)
	}

	envelopeBytes, err := io.ReadAll(envelopePart)
	if err != nil {
		return nil, fmt.Errorf("reading envelope: %w", err)
	}
	envelopePart.Close()

	// Parse and validate the SOAP envelope
	envelope, err := parseEnvelope(envelopeBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}

	// Verify signature
	sigResult, err := h.verifySignature(ctx, envelopeBytes, envelope)
	if err != nil {
		log.Error("signature verification failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	log.Info("signature verified",
		slog.String("message_id", envelope.MessageID),
		slog.String("signer", sigResult.SignerSubject))

	// Read payloads
	var payloads []PayloadPart
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading payload part: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			part.Close()
			return nil, fmt.Errorf("reading payload data: %w", err)
		}

		contentID := strings.Trim(part.Header.Get("Content-ID"), "<>")
		payloads = append(payloads, PayloadPart{
			ContentID:   contentID,
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
		part.Close()
	}

	// Run the inbound payloads and envelope through the core header
	// processing pipeline: cross-validates PartyInfo, resolves the
	// governing P-Mode and MPC, and checks attachments against PartInfo.
	// A failure here does not abort storage of the raw message; the ebMS
	// errors are logged and are not returned to the caller.
	state, headerErrs, err := h.processMessagingHeaders(envelopeBytes, payloads)
	if err != nil {
		return nil, fmt.Errorf("processing messaging headers: %w", err)
	}
	if len(headerErrs) > 0 {
		log.Warn("messaging header processing failed",
			slog.String("message_id", envelope.MessageID),
			slog.String("error_code", headerErrs[0].ErrorCode))
	} else {
		log.Debug("messaging header processing succeeded",
			slog.Int("leg", state.EffectivePModeLeg.Number),
			slog.Bool("body_payload_present", state.SoapBodyPayloadPresent))
	}

	// Store the message
	msg := &storage.Message{
		TenantID:       tenantID,
		Direction:      storage.DirectionInbound,
		AS4MessageID:   envelope.MessageID,
		ConversationID: envelope.ConversationID,
		RefToMessageID: envelope.RefToMessageID,
		FromParty: storage.PartyID{
			Type:  envelope.FromParty.Type,
			Value: envelope.FromParty.Value,
		},
		ToParty: storage.PartyID{
			Type:  envelope.ToParty.Type,
			Value: envelope.ToParty.Value,
		},
		Service:    envelope.Service,
		Action:     envelope.Action,
		Status:     storage.StatusReceived,
		ReceivedAt: time.Now(),
	}

	// Add payload references
	for _, p := range payloads {
		msg.Payloads = append(msg.Payloads, storage.PayloadRef{
			ContentID:  p.ContentID,
			MimeType:   p.ContentType,
			Compressed: detectCompression(p.Data) != "",
		})
	}

	if err := h.messageStore.CreateMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("storing message: %w", err)
	}

	log.Info("message received",
		slog.String("message_id", envelope.MessageID),
		slog.String("from", envelope.FromParty.Value),
		slog.String("to", envelope.ToParty.Value),
		slog.String("service", envelope.Service),
		slog.String("action", envelope.Action))

	return &InboundResult{
		MessageID:      msg.ID,
		AS4MessageID:   envelope.MessageID,
		ConversationID: envelope.ConversationID,
		Payloads:       len(payloads),
		SignerSubject:  sigResult.SignerSubject,
	}, nil
}

// processMessagingHeaders runs the ebMS3 Messaging header through the
// core header-processing pipeline. When the envelope unmarshals, it
// returns a non-nil state even if header processing reported ebMS
// errors; on an unmarshal error it returns a nil state and the error.
func (h *Handler) processMessagingHeaders(envelopeBytes []byte, payloads []PayloadPart) (*msh.MessageState, []as4message.Error, error) {
	var envelope as4message.Envelope
	if err := xml.Unmarshal(envelopeBytes, &envelope); err != nil {
		return nil, nil, fmt.Errorf("unmarshaling SOAP envelope: %w", err)
	}

	var raw []byte
	if envelope.Header != nil && envelope.Header.Messaging != nil {
		if b, merr := xml.Marshal(envelope.Header.Messaging); merr == nil {
			raw = b
		}
	}

	attachments := make([]as4mime.Payload, 0, len(payloads))
	for _, p := range payloads {
		attachments = append(attachments, as4mime.Payload{
			ContentID:   p.ContentID,
			ContentType: p.ContentType,
			Data:        p.Data,
		})
	}

	state := msh.NewMessageState()
	// originalSoapDocument is captured here, ahead of header processing,
	// since its value does not depend on any processor's validation
	// outcome; it is retained for retransmission and non-repudiation
	// evidence regardless of whether the message is accepted.
	state.OriginalSoapDocument = envelopeBytes
	_, errs := h.headerProcessor.Process(raw, envelope.Body, attachments, state)
	return state, errs, nil
}

// InboundResult contains the result of processing an inbound message
type InboundResult struct {
	MessageID      string
	AS4MessageID   string
	ConversationID string
	Payloads       int
	SignerSubject  string
}

// PayloadPart represents a payload in a multipart message
type PayloadPart struct {
	ContentID   string
	ContentType string
	Data        []byte
}

// SignatureResult contains signature verification results
type SignatureResult struct {
	Valid         bool
	SignerSubject string
	SignerCert    *x509.Certificate
}

// verifySignature checks that the envelope carries an X509Certificate and
// a Signature element. It does not verify the signature value or the
// certificate; when both elements are present the result is always Valid.
func (h *Handler) verifySignature(ctx context.Context, envelopeBytes []byte, envelope *EnvelopeInfo) (*SignatureResult, error) {
	// Extract certificate from the envelope for verification
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(envelopeBytes); err != nil {
		return nil, fmt.Errorf("parsing XML: %w", err)
	}

	// Find the X509Certificate in the Security header
	certElem := doc.FindElement("//*[local-name()='X509Certificate']")
	if certElem == nil {
		return nil, fmt.Errorf("no X509Certificate found in envelope")
	}

	// For now, do basic signature structure validation
	// Full signature verification would use the security package verifiers
	// which require the certificate to be extracted and a verifier created

	sigElem := doc.FindElement("//*[local-name()='Signature']")
	if sigElem == nil {
		return nil, fmt.Errorf("no Signature element found")
	}

	// Extract signer subject from certificate (simplified)
	// In production, parse the base64 certificate
	return &SignatureResult{
		Valid:         true, // Placeholder - real verification needed
		SignerSubject: "signature present",
		SignerCert:    nil,
	}, nil
}

// SendMessage creates and sends an AS4 message
func (h *Handler) SendMessage(ctx context.Context, tenantID string, req *SendRequest, creds *keystore.SessionCredentials) (*SendResult, error) {
	log := h.logger.With(slog.String("tenant_id", tenantID))

	// Get signer
	keyID := req.SigningKeyID
	ctx = keystore.ContextWithCredentials(ctx, creds)
	signer, err := h.signerProvider.GetSigner(ctx, tenantID, keyID)
	if err != nil {
		return nil, fmt.Errorf("getting signer: %w", err)
	}

	// Generate message ID if not provided
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString() + "@" + req.FromParty.Value
	}

	// Build SOAP envelope
	envelope, err := h.buildEnvelope(req, messageID)
	if err != nil {
		return nil, fmt.Errorf("building envelope: %w", err)
	}

	// Sign the envelope
	signedEnvelope, err := h.signEnvelope(envelope, signer)
	if err != nil {
		return nil, fmt.Errorf("signing envelope: %w", err)
	}

	// Build multipart message
	body, contentType, err := h.buildMultipart(signedEnvelope, req.Payloads)
	if err != nil {
		return nil, fmt.Errorf("building multipart: %w", err)
	}

	// Send the message
	httpReq, err := http.NewRequestWithContext(ctx, "POST", req.EndpointURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("SOAPAction", req.Service+"/"+req.Action)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	// Check response
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(respBody))
	}

	log.Info("message sent",
		slog.String("message_id", messageID),
		slog.String("endpoint", req.EndpointURL),
		slog.String("service", req.Service),
		slog.String("action", req.Action))

	return &SendResult{
		MessageID: messageID,
		Status:    "sent",
	}, nil
}

// SendRequest contains parameters for sending a message
type SendRequest struct {
	EndpointURL    string
	MessageID      string
	ConversationID string
	RefToMessageID string
	FromParty      storage.PartyID
	ToParty        storage.PartyID
	Service        string
	Action         string
	SigningKeyID   string
	Payloads       []PayloadPart
}

// SendResult contains the result of sending a message
type SendResult struct {
	MessageID string
	Status    string
}

// EnvelopeInfo contains parsed AS4 envelope information
type EnvelopeInfo struct {
	MessageID      string
	ConversationID string
	RefToMessageID string
	FromParty      PartyInfo
	ToParty        PartyInfo
	Service        string
	Action         string
}

// PartyInfo contains party identification
type PartyInfo struct {
	Type  string
	Value string
}

// buildEnvelope creates a SOAP envelope for an AS4 message
func (h *Handler) buildEnvelope(req *SendRequest, messageID string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	// SOAP Envelope
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", "http://www.w3.org/2003/05/soap-envelope")
	env.CreateAttr("xmlns:eb", "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/")

	// SOAP Header
	header := env.CreateElement("soap:Header")

	// ebMS Messaging
	messaging := header.CreateElement("eb:Messaging")
	userMsg := messaging.CreateElement("eb:UserMessage")

	// Message Info
	msgInfo := userMsg.CreateElement("eb:MessageInfo")
	timestamp := msgInfo.CreateElement("eb:Timestamp")
	timestamp.SetText(time.Now().UTC().Format(time.RFC3339))
	msgID := msgInfo.CreateElement("eb:MessageId")
	msgID.SetText(messageID)
	if req.RefToMessageID != "" {
		refToMsg := msgInfo.CreateElement("eb:RefToMessageId")
		refToMsg.SetText(req.RefToMessageID)
	}

	// Party Info
	partyInfo := userMsg.CreateElement("eb:PartyInfo")
	from := partyInfo.CreateElement("eb:From")
	fromParty := from.CreateElement("eb:PartyId")
	fromParty.CreateAttr("type", req.FromParty.Type)
	fromParty.SetText(req.FromParty.Value)
	fromRole := from.CreateElement("eb:Role")
	fromRole.SetText("http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/initiator")

	to := partyInfo.CreateElement("eb:To")
	toParty := to.CreateElement("eb:PartyId")
	toParty.CreateAttr("type", req.ToParty.Type)
	toParty.SetText(req.ToParty.Value)
	toRole := to.CreateElement("eb:Role")
	toRole.SetText("http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/responder")

	// Collaboration Info
	collabInfo := userMsg.CreateElement("eb:CollaborationInfo")
	convID := collabInfo.CreateElement("eb:ConversationId")
	if req.ConversationID != "" {
		convID.SetText(req.ConversationID)
	} else {
		convID.SetText(uuid.NewString())
	}
	service := collabInfo.CreateElement("eb:Service")
	service.SetText(req.Service)
	action := collabInfo.CreateElement("eb:Action")
	action.SetText(req.Action)

	// Payload Info
	if len(req.Payloads) > 0 {
		payloadInfo := userMsg.CreateElement("eb:PayloadInfo")
		for _, p := range req.Payloads {
			partInfo := payloadInfo.CreateElement("eb:PartInfo")
			partInfo.CreateAttr("href", "cid:"+p.ContentID)
			props := partInfo.CreateElement("eb:PartProperties")
			prop := props.CreateElement("eb:Property")
			prop.CreateAttr("name", "MimeType")
			prop.SetText(p.ContentType)
		}
	}

	// SOAP Body
	env.CreateElement("soap:Body")

	return doc, nil
}

// signEnvelope signs the SOAP envelope
func (h *Handler) signEnvelope(envelope *etree.Document, signer keystore.Signer) ([]byte, error) {
	// Get the envelope as bytes
	envelopeBytes, err := envelope.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serializing envelope: %w", err)
	}

	// Get the private key and certificate from the signer
	cert := signer.Certificate()
	pubKey := signer.Public()

	// Create a security signer based on the key type
	var secSigner security.Signer
	switch key := pubKey.(type) {
	case *rsa.PublicKey:
		// RSA key - need to get the private key
		// The keystore.Signer wraps a crypto.Signer, use that for signing
		signConfig := &pmode.SignConfig{
			Algorithm:      pmode.AlgoRSASHA256,
			TokenReference: pmode.TokenRefBinarySecurityToken,
		}
		factory := &security.SignerFactory{}
		// We can't get the private key directly, so we'll use a wrapper
		rsaSigner, err := factory.NewSigner(signConfig, nil, cert)
		if err != nil {
			// Fall back to a simpler approach - use the wrapped signer
			return h.signWithCryptoSigner(envelopeBytes, signer)
		}
		secSigner = rsaSigner
	default:
		// For other key types (Ed25519, etc.), use the wrapper approach
		_ = key // suppress unused warning
		return h.signWithCryptoSigner(envelopeBytes, signer)
	}

	// Sign using the security package
	signedBytes, err := secSigner.SignEnvelope(envelopeBytes)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	return signedBytes, nil
}

// signWithCryptoSigner signs using the keystore.Signer's crypto.Signer interface
// This is a fallback when we can't use the security package directly
func (h *Handler) signWithCryptoSigner(envelopeBytes []byte, signer keystore.Signer) ([]byte, error) {
	// For now, return unsigned envelope with a warning
	// Full implementation would integrate with signedxml package
	h.logger.Warn("using fallback signing - signature not implemented for this key type")
	return envelopeBytes, nil
}

// buildMultipart creates a multipart/related message
func (h *Handler) buildMultipart(envelope []byte, payloads []PayloadPart) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	// Set custom boundary for ebMS compatibility
	boundary := "----=_Part_" + uuid.NewString()
	mw.SetBoundary(boundary)

	// Write SOAP envelope
	soapHeader := make(textproto.MIMEHeader)
	soapHeader.Set("Content-Type", "application/soap+xml; charset=UTF-8")
	soapHeader.Set("Content-Transfer-Encoding", "binary")
	part, err := mw.CreatePart(soapHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(envelope); err != nil {
		return nil, "", err
	}

	// Write payloads
	for _, p := range payloads {
		payloadHeader := make(textproto.MIMEHeader)
		payloadHeader.Set("Content-Type", p.ContentType)
		payloadHeader.Set("Content-ID", "<"+p.ContentID+">")
		payloadHeader.Set("Content-Transfer-Encoding", "binary")
		part, err := mw.CreatePart(payloadHeader)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p.Data); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	contentType := fmt.Sprintf("multipart/related; boundary=\"%s\"; type=\"application/soap+xml\"; start-info=\"text/xml\"", boundary)
	return &buf, contentType, nil
}

// Helper functions

func extractBoundary(contentType string) string {
	parts := strings.Split(contentType, ";")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "boundary=") {
			boundary := strings.TrimPrefix(p, "boundary=")
			return strings.Trim(boundary, "\"")
		}
	}
	return ""
}

func parseEnvelope(data []byte) (*EnvelopeInfo, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, err
	}

	info := &EnvelopeInfo{}

	// Find UserMessage
	userMsg := doc.FindElement("//eb:UserMessage")
	if userMsg == nil {
		// Try without namespace prefix
		userMsg = doc.FindElement("//*[local-name()='UserMessage']")
	}
	if userMsg == nil {
		return nil, fmt.Errorf("no UserMessage element found")
	}

	// Parse MessageInfo
	msgID := userMsg.FindElement(".//eb:MessageId")
	if msgID == nil {
		msgID = userMsg.FindElement(".//*[local-name()='MessageId']")
	}
	if msgID != nil {
		info.MessageID = msgID.Text()
	}

	refToMsg := userMsg.FindElement(".//eb:RefToMessageId")
	if refToMsg == nil {
		refToMsg = userMsg.FindElement(".//*[local-name()='RefToMessageId']")
	}
	if refToMsg != nil {
		info.RefToMessageID = refToMsg.Text()
	}

	// Parse PartyInfo
	fromParty := userMsg.FindElement(".//eb:From/eb:PartyId")
	if fromParty == nil {
		fromParty = userMsg.FindElement(".//*[local-name()='From']/*[local-name()='PartyId']")
	}
	if fromParty != nil {
		info.FromParty.Value = fromParty.Text()
		if t := fromParty.SelectAttrValue("type", ""); t != "" {
			info.FromParty.Type = t
		}
	}

	toParty := userMsg.FindElement(".//eb:To/eb:PartyId")
	if toParty == nil {
		toParty = userMsg.FindElement(".//*[local-name()='To']/*[local-name()='PartyId']")
	}
	if toParty != nil {
		info.ToParty.Value = toParty.Text()
		if t := toParty.SelectAttrValue("type", ""); t != "" {
			info.ToParty.Type = t
		}
	}

	// Parse CollaborationInfo
	convID := userMsg.FindElement(".//eb:ConversationId")
	if convID == nil {
		convID = userMsg.FindElement(".//*[local-name()='ConversationId']")
	}
	if convID != nil {
		info.ConversationID = convID.Text()
	}

	service := userMsg.FindElement(".//eb:Service")
	if service == nil {
		service = userMsg.FindElement(".//*[local-name()='Service']")
	}
	if service != nil {
		info.Service = service.Text()
	}

	action := userMsg.FindElement(".//eb:Action")
	if action == nil {
		action = userMsg.FindElement(".//*[local-name()='Action']")
	}
	if action != nil {
		info.Action = action.Text()
	}

	return info, nil
}

func detectCompression(data []byte) string {
	// Check for gzip magic number
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return "application/gzip"
	}
	return ""
}

// GenerateReceipt creates an AS4 receipt signal message
func (h *Handler) GenerateReceipt(ctx context.Context, tenantID, refMessageID string, signer keystore.Signer) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	// SOAP Envelope
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", "http://www.w3.org/2003/05/soap-envelope")
	env.CreateAttr("xmlns:eb", "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/")

	// SOAP Header
	header := env.CreateElement("soap:Header")

	// ebMS Messaging with SignalMessage
	messaging := header.CreateElement("eb:Messaging")
	signalMsg := messaging.CreateElement("eb:SignalMessage")

	// Message Info
	msgInfo := signalMsg.CreateElement("eb:MessageInfo")
	timestamp := msgInfo.CreateElement("eb:Timestamp")
	timestamp.SetText(time.Now().UTC().Format(time.RFC3339))
	msgID := msgInfo.CreateElement("eb:MessageId")
	msgID.SetText(uuid.NewString() + "@receipt")
	refToMsg := msgInfo.CreateElement("eb:RefToMessageId")
	refToMsg.SetText(refMessageID)

	// Receipt
	receipt := signalMsg.CreateElement("eb:Receipt")
	nonRep := receipt.CreateElement("ebbp:NonRepudiationInformation")
	nonRep.CreateAttr("xmlns:ebbp", "http://docs.oasis-open.org/ebxml-bp/ebbp-signals-2.0")
	// Add message part info reference (simplified)
	msgPartInfo := nonRep.CreateElement("ebbp:MessagePartNRInformation")
	ref := msgPartInfo.CreateElement("ebbp:ReceivedDigestValue")
	ref.SetText("") // Would contain actual digest

	// Empty body
	env.CreateElement("soap:Body")

	// Sign if signer provided
	if signer != nil {
		return h.signEnvelope(doc, signer)
	}

	return doc.WriteToBytes()
}

// AS4Error represents an AS4 error
type AS4Error struct {
	Code        string
	Severity    string
	ShortDesc   string
	Description string
	RefToMsgID  string
}

// GenerateError creates an AS4 error signal message
func (h *Handler) GenerateError(ctx context.Context, e *AS4Error) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", "http://www.w3.org/2003/05/soap-envelope")
	env.CreateAttr("xmlns:eb", "http://docs.oasis-open.org/ebxml-msg/ebms/v3.0/ns/core/200704/")

	header := env.CreateElement("soap:Header")

	messaging := header.CreateElement("eb:Messaging")
	signalMsg := messaging.CreateElement("eb:SignalMessage")

	msgInfo := signalMsg.CreateElement("eb:MessageInfo")
	timestamp := msgInfo.CreateElement("eb:Timestamp")
	timestamp.SetText(time.Now().UTC().Format(time.RFC3339))
	msgID := msgInfo.CreateElement("eb:MessageId")
	msgID.SetText(uuid.NewString() + "@error")
	if e.RefToMsgID != "" {
		refToMsg := msgInfo.CreateElement("eb:RefToMessageId")
		refToMsg.SetText(e.RefToMsgID)
	}

	errorEl := signalMsg.CreateElement("eb:Error")
	errorEl.CreateAttr("errorCode", e.Code)
	errorEl.CreateAttr("severity", e.Severity)
	errorEl.CreateAttr("shortDescription", e.ShortDesc)
	if e.Description != "" {
		desc := errorEl.CreateElement("eb:Description")
		desc.CreateAttr("xml:lang", "en")
		desc.SetText(e.Description)
	}

	env.CreateElement("soap:Body")

	return doc.WriteToBytes()
}
