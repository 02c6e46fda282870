package crypto

// Wipe overwrites b with zeroes in place. Best-effort: it does not defend
// against a compiler proving the write is dead, but it shortens the window a
// secret spends resident after its owner is done with it.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
