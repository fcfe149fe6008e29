// Package presence tracks which agents are connected to this gateway
// instance.
//
// The registry is deliberately not shared across instances: dialogue state,
// leases and the wait queue live in Redis, but connectivity is a property
// of the websocket the agent holds to one process. Running multiple
// instances therefore requires sticky routing of each agent's connection,
// or accepting that each instance only assigns to its own agents.
package presence
