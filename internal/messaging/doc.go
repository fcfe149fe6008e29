// Package messaging defines the contract between the gateway core and the
// external contact channel integration.
package messaging
