package models

// KeyMode is the four-state status of the device's key hierarchy
// (spec §3 "KeyMode", §4.3).
type KeyMode int

const (
	// KeyModeNone means no crypto state exists: storage is plaintext and
	// there is no root key.
	KeyModeNone KeyMode = iota

	// KeyModeRootKeyOnly means an account root key is stored plaintext in
	// the OS keychain; no wrapped form exists in app storage.
	KeyModeRootKeyOnly

	// KeyModeWrapperOnly means there is no account: the passcode-derived
	// wrapping key doubles as the root key, and storage itself is
	// encrypted with it.
	KeyModeWrapperOnly

	// KeyModeRootKeyPlusWrapper means an account root key lives in app
	// storage wrapped by a passcode-derived wrapping key; the keychain is
	// cleared.
	KeyModeRootKeyPlusWrapper
)

// String implements [fmt.Stringer].
func (m KeyMode) String() string {
	switch m {
	case KeyModeNone:
		return "None"
	case KeyModeRootKeyOnly:
		return "RootKeyOnly"
	case KeyModeWrapperOnly:
		return "WrapperOnly"
	case KeyModeRootKeyPlusWrapper:
		return "RootKeyPlusWrapper"
	default:
		return "Unknown"
	}
}

// HasRootKey reports whether this mode implies an account root key exists.
func (m KeyMode) HasRootKey() bool {
	return m == KeyModeRootKeyOnly || m == KeyModeRootKeyPlusWrapper
}

// HasWrapper reports whether this mode implies a passcode wrapping key
// exists.
func (m KeyMode) HasWrapper() bool {
	return m == KeyModeWrapperOnly || m == KeyModeRootKeyPlusWrapper
}
