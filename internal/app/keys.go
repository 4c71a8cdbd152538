package app

import "github.com/nhle/sms-messenger/internal/keys"

// KeyMap is re-exported from the keys package for callers that only
// import app.
type KeyMap = keys.KeyMap

// DefaultKeyMap delegates to keys.DefaultKeyMap.
func DefaultKeyMap() *KeyMap {
	return keys.DefaultKeyMap()
}
