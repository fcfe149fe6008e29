// ABOUTME: Package documentation for assign
// ABOUTME: Describes the scheduling model and its locking discipline

// Package assign decides which agent handles an escalated chat.
//
// Selection is load-based: among connected agents the one with the fewest
// ACTIVE chats wins, ties broken by connect order. When nobody is
// connected the chat is parked on the Redis wait queue and picked up by
// the next agent to connect, oldest first.
//
// The scheduler also owns the two per-chat clocks. The response timer
// bounds how long an assigned agent may stay silent before the chat is
// reassigned or released. The inactivity timer expires idle automated
// sessions. Both callbacks re-validate chat state under the scheduler
// mutex before acting, so a clock that fires after the chat moved on
// does nothing.
package assign
