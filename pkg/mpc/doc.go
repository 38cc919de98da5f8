// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mpc implements Message Partition Channels (MPCs) for AS4 pull
delivery.

An MPC is a named logical queue. Every UserMessage is associated with
exactly one, either explicitly (the message's own mpc field, or a P-Mode
leg's businessInfo.mpcId) or implicitly (the registry's default MPC).
PullRequest signals name the MPC they want drained.

# Registry

[Registry] is the read-only contract the header processor depends on:

	registry.Contains(id)     // strict existence check, used for P-Mode-side validation
	registry.Get(id)          // strict lookup, used for pull requests
	registry.GetOrDefault(id) // lookup with fallback to the default MPC, used for user messages

[InMemoryRegistry] is a process-local implementation suitable for
single-node deployments or tests; Register and Unregister take the
registry's write lock, so the host may add or remove MPCs while requests
read it, as with the P-Mode and endpoint resolvers in pkg/pmode and
pkg/msh.
*/
package mpc
