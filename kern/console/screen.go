package console

import (
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/joshuapare/kernkit/kern/lock"
)

const (
	// Cols and Rows are the text mode dimensions.
	Cols = 80
	Rows = 24

	// BufSize is the size of the screen memory: a character byte and an
	// attribute byte per cell.
	BufSize = Cols * Rows * 2

	// DefaultAttr is light grey on black.
	DefaultAttr = 0x07

	blank = ' '
)

// Screen is the text mode screen buffer. Writes past the last cell scroll the
// buffer up one row.
type Screen struct {
	mu *lock.Mutex[screen]
}

type screen struct {
	cells [BufSize]byte
	pos   int
}

// NewScreen returns a cleared screen. yield is called while another task
// holds the screen; it may be nil.
func NewScreen(yield lock.Yield) *Screen {
	s := &Screen{mu: lock.New(screen{}, yield)}
	s.Clear()
	return s
}

// Clear blanks every cell and homes the cursor.
func (s *Screen) Clear() {
	g := s.mu.Lock()
	defer g.Unlock()
	g.Value().clear()
}

// WriteByte writes one character at the cursor. '\n' moves to the start of
// the next row.
func (s *Screen) WriteByte(c byte) error {
	g := s.mu.Lock()
	defer g.Unlock()
	g.Value().put(c)
	return nil
}

// Write implements io.Writer.
func (s *Screen) Write(p []byte) (int, error) {
	g := s.mu.Lock()
	defer g.Unlock()
	sc := g.Value()
	for _, c := range p {
		sc.put(c)
	}
	return len(p), nil
}

// Cursor returns the cursor as row and column.
func (s *Screen) Cursor() (row, col int) {
	g := s.mu.Lock()
	defer g.Unlock()
	pos := g.Value().pos
	return pos / Cols, pos % Cols
}

// Cells returns a copy of the raw screen memory.
func (s *Screen) Cells() [BufSize]byte {
	g := s.mu.Lock()
	defer g.Unlock()
	return g.Value().cells
}

// Lines returns every row decoded from code page 437, trailing blanks removed.
func (s *Screen) Lines() []string {
	cells := s.Cells()
	lines := make([]string, Rows)
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		sb.Reset()
		for c := 0; c < Cols; c++ {
			sb.WriteRune(charmap.CodePage437.DecodeByte(cells[(r*Cols+c)*2]))
		}
		lines[r] = strings.TrimRight(sb.String(), " ")
	}
	return lines
}

// String returns the non-empty part of the screen, one row per line.
func (s *Screen) String() string {
	lines := s.Lines()
	n := len(lines)
	for n > 0 && lines[n-1] == "" {
		n--
	}
	return strings.Join(lines[:n], "\n")
}

func (sc *screen) clear() {
	for i := 0; i < BufSize; i += 2 {
		sc.cells[i] = blank
		sc.cells[i+1] = DefaultAttr
	}
	sc.pos = 0
}

func (sc *screen) put(c byte) {
	if c == '\n' {
		sc.pos += Cols - sc.pos%Cols
	} else {
		sc.cells[sc.pos*2] = c
		sc.pos++
	}
	if sc.pos >= Cols*Rows {
		sc.scroll()
	}
}

func (sc *screen) scroll() {
	row := Cols * 2
	copy(sc.cells[:], sc.cells[row:])
	for i := BufSize - row; i < BufSize; i += 2 {
		sc.cells[i] = blank
		sc.cells[i+1] = DefaultAttr
	}
	sc.pos -= Cols
}
