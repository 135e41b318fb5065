// Package types holds the data model shared by every messaging component: message identifiers,
// the Message sum type and its state transitions, callbacks, correlation handles and the
// requests a caller can hand to a transport.
package types
