package console

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/kernkit/kern/ring"
)

// Console reads keyboard input and writes to a Screen.
type Console struct {
	kbd    *ring.Buf
	screen *Screen
	yield  func()
}

// New creates a console reading from kbd. yield suspends the calling task
// while kbd is empty.
func New(kbd *ring.Buf, screen *Screen, yield func()) *Console {
	return &Console{kbd: kbd, screen: screen, yield: yield}
}

// Screen returns the output screen.
func (c *Console) Screen() *Screen { return c.screen }

// ReadChar returns the next buffered character, suspending until one
// arrives, and echoes it.
func (c *Console) ReadChar() byte {
	for {
		ch, ok := c.kbd.PopFront()
		if !ok {
			c.yield()
			continue
		}
		_ = c.screen.WriteByte(ch)
		return ch
	}
}

// ReadLine reads characters up to '\n' and returns them without it, decoded
// from code page 437. Backspace drops the previous character. At most max
// bytes are kept; a longer line is consumed and ErrLineTooLong returned.
func (c *Console) ReadLine(max int) (string, error) {
	line := make([]byte, 0, max)
	overflow := false
	for {
		ch := c.ReadChar()
		switch ch {
		case '\n':
			if overflow {
				return "", fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, max)
			}
			return decode(line), nil
		case '\b':
			if len(line) > 0 {
				line = line[:len(line)-1]
			}
		default:
			if len(line) == max {
				overflow = true
				continue
			}
			line = append(line, ch)
		}
	}
}

// Printf formats to the screen.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.screen, format, args...)
}

func decode(b []byte) string {
	out, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
