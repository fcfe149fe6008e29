// Package dialogue implements the automated, menu-driven conversation flow.
//
// # Overview
//
// The package has two halves:
//
//   - Engine: a pure state-transition function over (step, flags, input).
//     Every invocation yields a typed Outcome (Reply, Escalate or
//     SurveyStarted); control signals never travel inside reply text.
//   - StateStore: Redis-backed per-contact dialogue state with a 24h TTL,
//     refreshed on every write and recreated with defaults when absent.
//
// # Steps
//
//	START -> ASK_FOR_NAME -> MAIN_MENU -> DISCLAIMER -> AWAIT_ID
//	                              \-> (escalate to a human)
//	any step -> SURVEY -> (session ends, state reset)
//
// A fixed set of exit keywords is checked before any step logic, so a
// contact can always reach the menu or end the session.
//
// # Concurrency
//
// The engine is stateless and safe for concurrent use. State mutation
// happens in the router while the contact's lease is held.
package dialogue
