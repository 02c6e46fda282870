package domain

import (
	interfaces "ciphera/internal/domain/interfaces"
	types "ciphera/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Username            = types.Username
	Device              = types.Device
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	KEMPreKeyID         = types.KEMPreKeyID
	PeerDevice          = types.PeerDevice
	Identity            = types.Identity
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	SignedPreKeyRecord  = types.SignedPreKeyRecord
	KEMPreKeyRecord     = types.KEMPreKeyRecord
	PreKeyBundle        = types.PreKeyBundle
	PreKeyMessage       = types.PreKeyMessage
	Envelope            = types.Envelope
	EnvelopeType        = types.EnvelopeType
	DecryptedMessage    = types.DecryptedMessage
	RatchetHeader       = types.RatchetHeader
	RatchetState        = types.RatchetState
	Session             = types.Session
	MessageKind         = types.MessageKind
	AppMessage          = types.AppMessage
	ChatPrompt          = types.ChatPrompt
	ChatReply           = types.ChatReply
	TelemetryReport     = types.TelemetryReport
	HostMetrics         = types.HostMetrics
	ControlPing         = types.ControlPing
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
	KEMPublic           = types.KEMPublic
	KEMPrivate          = types.KEMPrivate
	KEMCiphertext       = types.KEMCiphertext
)

const (
	EnvelopeInitial    = types.EnvelopeInitial
	EnvelopeSubsequent = types.EnvelopeSubsequent
	EnvelopeVersion    = types.EnvelopeVersion

	KindChatPrompt      = types.KindChatPrompt
	KindChatReply       = types.KindChatReply
	KindTelemetryReport = types.KindTelemetryReport
	KindControlPing     = types.KindControlPing
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	RelayClient        = interfaces.RelayClient
	Subscription        = interfaces.Subscription
	IdentityStore      = interfaces.IdentityStore
	SessionStore       = interfaces.SessionStore
	OneTimePreKeyStore = interfaces.OneTimePreKeyStore
	SignedPreKeyStore  = interfaces.SignedPreKeyStore
	KemPreKeyStore     = interfaces.KemPreKeyStore
)
