// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package pmode provides Processing Mode (P-Mode) configuration for AS4.

P-Mode is the central configuration mechanism in AS4 that defines how
messages are processed. Each P-Mode specifies settings for a particular
message exchange agreement between parties.

# P-Mode Structure

A P-Mode contains the following configuration sections:

	type ProcessingMode struct {
	    ID                 string
	    Leg1, Leg2         *Leg                // Per-leg protocol, business info, security
	    Agreement          *Agreement          // Business agreement reference
	    MEP                string              // Message Exchange Pattern URI
	    MEPBinding         MEPBindingInfo      // Binding URI and required leg count
	    Service, Action    string              // Service and action
	    Protocol           *Protocol           // Transport protocol settings
	    Security           *Security           // Signing and encryption settings
	    ReceptionAwareness *ReceptionAwareness // Retry and duplicate detection
	    PayloadService     *PayloadService     // Compression settings
	    NamespaceVersion   NamespaceVersion    // ebMS3 or AS4 2.0 namespace
	    SecurityProfile    SecurityProfile     // Default algorithm suite
	}

# Creating P-Modes

Use the default P-Mode as a starting point:

	pmode := pmode.DefaultPMode()
	pmode.ID = "my-pmode"
	pmode.Service = "OrderService"
	pmode.Action = "submitOrder"

# P-Mode Manager

The P-Mode manager handles P-Mode resolution:

	manager := pmode.NewPModeManager()
	manager.AddPMode(pmode)

	// Find matching P-Mode
	found := manager.FindPMode(service, action, fromParty, toParty)

# Message Exchange Patterns

Supported MEPs:
  - One-Way/Push: Sender initiates, receiver responds with receipt
  - One-Way/Pull: Receiver initiates request for waiting messages (planned)

# References

  - OASIS AS4 P-Mode: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
  - eDelivery P-Mode: https://ec.europa.eu/digital-building-blocks/sites/spaces/DIGITAL/
*/
package pmode
