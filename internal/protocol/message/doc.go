// Package message implements the envelope codec and the encrypt/decrypt
// pipeline that sits on top of a session: building the wire Envelope for an
// outbound plaintext (attaching a PreKeyMessage only on the very first
// envelope to a peer), and processing an inbound Envelope back into
// plaintext, bootstrapping a session from an embedded PreKeyMessage when one
// does not already exist.
package message
