package types

// Identity holds the long-term keys and registration metadata for one local
// identity (spec.md §3.1 "Identity"). Created once per store and immutable
// thereafter.
type Identity struct {
	Name           Username       `json:"name"`
	Device         Device         `json:"device"`
	RegistrationID uint32         `json:"registration_id"`
	XPub           X25519Public   `json:"xpub"`
	XPriv          X25519Private  `json:"xpriv"`
	EdPub          Ed25519Public  `json:"edpub"`
	EdPriv         Ed25519Private `json:"edpriv"`
}
