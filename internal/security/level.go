package security

// Level classifies which protections are active.
type Level int

const (
	// LevelNone: encryption is disabled or its key store is unusable.
	LevelNone Level = iota
	// LevelEncryptionOnly: content is encrypted but no user-presence gate exists.
	LevelEncryptionOnly
	// LevelFull: content is encrypted and gated by user presence.
	LevelFull
)

func (l Level) String() string {
	switch l {
	case LevelEncryptionOnly:
		return "encryption-only"
	case LevelFull:
		return "full"
	default:
		return "none"
	}
}
