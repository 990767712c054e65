package console

// ReleaseBit is set in the scan code of a key release.
const ReleaseBit = 0x80

// set1 maps scan code set 1 make codes of a US layout to characters.
var set1 = [...]byte{
	0x02: '1', 0x03: '2', 0x04: '3', 0x05: '4', 0x06: '5',
	0x07: '6', 0x08: '7', 0x09: '8', 0x0a: '9', 0x0b: '0',
	0x0c: '-', 0x0d: '=', 0x0e: '\b', 0x0f: '\t',
	0x10: 'q', 0x11: 'w', 0x12: 'e', 0x13: 'r', 0x14: 't',
	0x15: 'y', 0x16: 'u', 0x17: 'i', 0x18: 'o', 0x19: 'p',
	0x1a: '[', 0x1b: ']', 0x1c: '\n',
	0x1e: 'a', 0x1f: 's', 0x20: 'd', 0x21: 'f', 0x22: 'g',
	0x23: 'h', 0x24: 'j', 0x25: 'k', 0x26: 'l', 0x27: ';',
	0x28: '\'', 0x29: '`', 0x2b: '\\',
	0x2c: 'z', 0x2d: 'x', 0x2e: 'c', 0x2f: 'v', 0x30: 'b',
	0x31: 'n', 0x32: 'm', 0x33: ',', 0x34: '.', 0x35: '/',
	0x39: ' ',
}

// Translate returns the character for a key press scan code. ok is false for
// releases and keys with no character.
func Translate(scan byte) (c byte, ok bool) {
	if scan&ReleaseBit != 0 || int(scan) >= len(set1) {
		return 0, false
	}
	c = set1[scan]
	return c, c != 0
}

// ScanCode returns the make code producing c. It is the inverse of Translate.
func ScanCode(c byte) (scan byte, ok bool) {
	for i, v := range set1 {
		if v == c && v != 0 {
			return byte(i), true
		}
	}
	return 0, false
}
