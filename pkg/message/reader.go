package message

import (
	"encoding/xml"
	"fmt"
)

// Diagnostic is a single schema-validation complaint collected while
// deserializing a Messaging element. The header processor maps these to
// ebMS EBMS:0009 InvalidHeader error entries, preserving Text as the
// error detail.
type Diagnostic struct {
	Text     string
	Severity string
}

// ValidationEventHandler collects Diagnostics produced during
// deserialization instead of aborting on the first one, mirroring the
// teacher's CollectingValidationEventHandler pattern from the original
// Java implementation.
type ValidationEventHandler struct {
	diagnostics []Diagnostic
}

// Diagnostics returns the diagnostics collected so far.
func (h *ValidationEventHandler) Diagnostics() []Diagnostic {
	return h.diagnostics
}

func (h *ValidationEventHandler) report(severity string, format string, args ...interface{}) {
	h.diagnostics = append(h.diagnostics, Diagnostic{
		Text:     fmt.Sprintf(format, args...),
		Severity: severity,
	})
}

// ReadMessaging deserializes raw ebMS3 Messaging header bytes into a
// Messaging object tree, collecting validation diagnostics into the
// supplied handler rather than returning on first error. It returns a nil
// Messaging only when the bytes could not be unmarshaled at all (not
// well-formed XML) — the case Phase P0 of the header processor maps to
// EBMS:0009 InvalidHeader.
func ReadMessaging(raw []byte, handler *ValidationEventHandler) *Messaging {
	var m Messaging
	if err := xml.Unmarshal(raw, &m); err != nil {
		handler.report("error", "failed to parse Messaging element: %v", err)
		return nil
	}

	validateMessaging(&m, handler)
	return &m
}

// validateMessaging performs the structural checks that a real XSD
// validator would perform before handing the tree to the header
// processor: required sub-elements present, cardinalities sane. Failures
// here are diagnostics, not hard errors — Phase P1 onward in the header
// processor still runs its own cardinality checks against the parsed
// tree and is the authoritative source of ebMS fault codes.
func validateMessaging(m *Messaging, handler *ValidationEventHandler) {
	if um := m.UserMessage; um != nil {
		if um.MessageInfo == nil {
			handler.report("error", "UserMessage/MessageInfo is required")
		} else if um.MessageInfo.MessageId == "" {
			handler.report("error", "UserMessage/MessageInfo/MessageId is required")
		}
		if um.PartyInfo == nil {
			handler.report("error", "UserMessage/PartyInfo is required")
		} else {
			if um.PartyInfo.From == nil || len(um.PartyInfo.From.PartyId) == 0 {
				handler.report("error", "UserMessage/PartyInfo/From/PartyId is required")
			}
			if um.PartyInfo.To == nil || len(um.PartyInfo.To.PartyId) == 0 {
				handler.report("error", "UserMessage/PartyInfo/To/PartyId is required")
			}
		}
		if um.CollaborationInfo == nil {
			handler.report("error", "UserMessage/CollaborationInfo is required")
		}
	}

	if sm := m.SignalMessage; sm != nil {
		if sm.MessageInfo == nil {
			handler.report("error", "SignalMessage/MessageInfo is required")
		}
		for _, e := range sm.Error {
			if e.ErrorCode == "" {
				handler.report("warn", "SignalMessage/Error is missing errorCode")
			}
		}
	}
}
