package remote

import "fmt"

// keyNames maps kernel key codes to their input.h names.
//
// Only codes a hifi remote plausibly sends are listed; unknown codes get a
// synthetic KEY_<code> name so they still classify deterministically.
// Some codes carry several names because input.h defines aliases for them.
var keyNames = map[uint16][]string{
	113: {"KEY_MUTE", "KEY_MIN_INTERESTING"},
	114: {"KEY_VOLUMEDOWN"},
	115: {"KEY_VOLUMEUP"},
	116: {"KEY_POWER"},
	119: {"KEY_PAUSE"},
	128: {"KEY_STOP"},
	152: {"KEY_COFFEE", "KEY_SCREENLOCK"},
	161: {"KEY_EJECTCD"},
	162: {"KEY_EJECTCLOSECD"},
	163: {"KEY_NEXTSONG"},
	164: {"KEY_PLAYPAUSE"},
	165: {"KEY_PREVIOUSSONG"},
	166: {"KEY_STOPCD"},
	167: {"KEY_RECORD"},
	168: {"KEY_REWIND"},
	200: {"KEY_PLAYCD"},
	201: {"KEY_PAUSECD"},
	208: {"KEY_FASTFORWARD"},
}

// namesForCode resolves a key code to its candidate names.
func namesForCode(code uint16) []string {
	if names, ok := keyNames[code]; ok {
		return names
	}
	return []string{fmt.Sprintf("KEY_%d", code)}
}
