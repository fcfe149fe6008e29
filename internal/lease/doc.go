// Package lease implements the distributed mutual-exclusion primitive that
// serializes processing of a contact's messages across gateway instances.
//
// The lease is best-effort: acquisition failure means another instance is
// mid-flight for the same contact, and the caller is expected to drop the
// message rather than queue or retry. The TTL bounds how long a crashed
// holder can block a contact.
package lease
