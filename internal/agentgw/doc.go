// ABOUTME: Package documentation for agentgw
// ABOUTME: Describes the agent console surface

// Package agentgw exposes the agent-facing surface: a WebSocket endpoint
// that ties an agent's availability to a live connection and streams
// routing events, and a small JSON API for browsing chats, replying,
// manual assignment and release.
package agentgw
