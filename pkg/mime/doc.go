// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime handles MIME multipart packaging for AS4.

This package implements SOAP with Attachments (SwA) packaging for AS4
messages with binary payloads.

# MIME Structure

AS4 messages with attachments use multipart/related:

	Content-Type: multipart/related;
	    type="application/soap+xml";
	    start="soap-envelope";
	    boundary="----=_Part_..."

	------=_Part_...
	Content-Type: application/soap+xml
	Content-ID: <soap-envelope>

	[SOAP Envelope with encrypted content]

	------=_Part_...
	Content-Type: application/octet-stream
	Content-ID: <payload-1>
	Content-Transfer-Encoding: binary

	[Binary payload data]

# Creating Multipart Messages

Package a SOAP envelope with attachments:

	msg := mime.NewMessage(envelope, []mime.Payload{
	    mime.CreatePayloadWithID(payload, "application/xml", "payload-1"),
	})
	data, contentType, err := msg.Serialize()

# Parsing Multipart Messages

Parse received multipart messages:

	msg, err := mime.Parse(bytes.NewReader(body), contentType)
	envelope := msg.Envelope
	attachments := msg.Payloads

# Content IDs

Attachments are referenced by Content-ID (CID):

	cid:payload-1

The CID scheme allows payloads to be referenced from within the
SOAP envelope.

# References

  - SOAP with Attachments: https://www.w3.org/TR/SOAP-attachments
  - MIME Multipart: https://datatracker.ietf.org/doc/html/rfc2046
*/
package mime
