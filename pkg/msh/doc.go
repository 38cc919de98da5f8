// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package msh implements the Message Service Handler for AS4.

The MSH is the core processing component that handles incoming and
outgoing AS4 messages according to P-Mode configuration.

# MSH Components

The MSH coordinates:
  - Message validation
  - Security processing (signing, encryption)
  - Payload handling
  - Receipt generation
  - Error handling

# Incoming Messages

Queue received messages for the inbound workers:

	m, err := msh.NewMSH(msh.MSHConfig{Resolver: resolver, MessageHandler: handler})
	err = m.Start(ctx)
	err = m.ReceiveMessage(ctx, inbound)

# Outgoing Messages

Queue messages for the outbound workers:

	err = m.SendMessage(ctx, outbound)
	status, err := m.GetMessageStatus(outbound.MessageID)

# Security Processing

The MSH applies security based on P-Mode:
  - Verify incoming signatures
  - Sign outgoing messages
  - Encrypt outgoing payloads

Incoming payloads are not decrypted by the MSH workers.

# References

  - OASIS ebMS 3.0 Processing: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
*/
package msh
