// ABOUTME: Package documentation for router
// ABOUTME: Describes the per-message pipeline and the lease discipline

// Package router orchestrates one inbound contact message end to end.
//
// The pipeline per message: take the contact lease, load or create the
// chat, persist the message, then either stay silent (a human owns the
// chat) or run the dialogue engine and act on its outcome. The lease is
// released when the pipeline finishes; a concurrent message from the same
// contact that loses the lease race is dropped.
package router
