// Package console is the text console: an 80x24 VGA-style screen buffer and
// blocking keyboard input read from a ring.Buf filled by the keyboard
// interrupt handler.
//
// ReadChar suspends the calling task while no key is buffered and echoes
// every character it returns. Screen contents are code page 437 bytes; Lines
// and String decode them to UTF-8.
package console
