package msh

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	as4message "github.com/sirosfoundation/go-as4/pkg/message"
)

// ebMS error codes recognized by the header processor. These are the
// only codes this core ever synthesizes; a partner's own signal may
// carry other codes, which pass through uninterpreted.
const (
	ErrCodeValueNotRecognized     = "EBMS:0003"
	ErrCodeValueInconsistent      = "EBMS:0004"
	ErrCodeInvalidReceipt         = "EBMS:0006"
	ErrCodeInvalidHeader          = "EBMS:0009"
	ErrCodeProcessingModeMismatch = "EBMS:0010"
	ErrCodeExternalPayloadError   = "EBMS:0011"
)

// SeverityFailure is the severity this core assigns to every error it
// synthesizes; ebMS also defines "warning", which this core never emits
// on its own behalf.
const SeverityFailure = "failure"

func init() {
	message.SetString(language.English, "EBMS:0003", "Value not recognized")
	message.SetString(language.English, "EBMS:0004", "Value inconsistent")
	message.SetString(language.English, "EBMS:0006", "Invalid receipt")
	message.SetString(language.English, "EBMS:0009", "Invalid header")
	message.SetString(language.English, "EBMS:0010", "Processing mode mismatch")
	message.SetString(language.English, "EBMS:0011", "External payload error")

	message.SetString(language.Swedish, "EBMS:0003", "Värdet kändes inte igen")
	message.SetString(language.Swedish, "EBMS:0004", "Värdet är inkonsekvent")
	message.SetString(language.Swedish, "EBMS:0006", "Ogiltig mottagningsbekräftelse")
	message.SetString(language.Swedish, "EBMS:0009", "Ogiltigt huvud")
	message.SetString(language.Swedish, "EBMS:0010", "Processläge stämmer inte")
	message.SetString(language.Swedish, "EBMS:0011", "Fel i extern nyttolast")
}

// ErrorCatalog produces ebMS error entries with a short description
// localized for a given locale. The core holds no mutable state of its
// own; it is a thin wrapper over golang.org/x/text/message so the
// MessageState's locale slot has a real consumer.
type ErrorCatalog struct{}

// NewErrorCatalog creates an error catalog.
func NewErrorCatalog() *ErrorCatalog {
	return &ErrorCatalog{}
}

// New builds a single ebMS error entry for code, localized to locale,
// with detail attached as the ErrorDetail field.
func (c *ErrorCatalog) New(locale language.Tag, code, detail string) as4message.Error {
	p := message.NewPrinter(locale)
	return as4message.Error{
		ErrorCode:        code,
		Severity:         SeverityFailure,
		ShortDescription: p.Sprintf(code),
		ErrorDetail:      detail,
	}
}
