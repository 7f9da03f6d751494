package emballoc

// Pool and block boundary markers, alignAmount bytes each. All four are
// distinct, so a marker read from memory identifies both what it guards
// and which end of it. The byte values are part of the binary pool
// format and must not change.
var (
	poolHeadMarker = []byte{
		0xDE, 0xCE, 0xCA, 0xDE, 0xF0, 0xCA, 0xAC, 0xDC,
		0xF0, 0x0D, 0xFA, 0xCE, 0xDE, 0xAD, 0xBE, 0xEF,
	}
	poolTailMarker = []byte{
		0xDE, 0xAD, 0xBE, 0xEF, 0xF0, 0x0D, 0xFA, 0xCE,
		0xAC, 0xDC, 0xDE, 0xCE, 0xCA, 0xDE, 0xF0, 0xCA,
	}
	blockHeadMarker = []byte{
		0xF0, 0x0D, 0xFA, 0xCE, 0xDE, 0xAD, 0xBE, 0xEF,
		0xDE, 0xCE, 0xCA, 0xDE, 0xF0, 0xCA, 0xAC, 0xDC,
	}
	blockTailMarker = []byte{
		0xAC, 0xDC, 0xDE, 0xCE, 0xCA, 0xDE, 0xF0, 0xCA,
		0xDE, 0xAD, 0xBE, 0xEF, 0xF0, 0x0D, 0xFA, 0xCE,
	}
)
