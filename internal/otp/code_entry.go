package otp

import "strings"

// CodeLength is the number of digit cells in an OTP.
const CodeLength = 6

// FocusSignal tells a screen where to put the cursor after an edit. Move is
// false when the edit does not change focus.
type FocusSignal struct {
	Index int  `json:"index"`
	Move  bool `json:"move"`
}

// CodeEntry holds the six code cells and the focused cell. It never reports
// errors: invalid keystrokes are dropped and an incomplete code is only
// rejected when it is submitted.
type CodeEntry struct {
	cells [CodeLength]string
	focus int
}

func NewCodeEntry() *CodeEntry {
	return &CodeEntry{}
}

// SetDigit stores raw at index. raw must be a single decimal digit or empty;
// anything else, and any index outside the cells, leaves the entry untouched.
// A stored digit advances focus to the next cell, a clear keeps focus.
func (e *CodeEntry) SetDigit(index int, raw string) FocusSignal {
	if index < 0 || index >= CodeLength {
		return FocusSignal{Index: e.focus}
	}
	if raw == "" {
		e.cells[index] = ""
		return FocusSignal{Index: e.focus}
	}
	if !isDigit(raw) {
		return FocusSignal{Index: e.focus}
	}
	e.cells[index] = raw
	if index < CodeLength-1 {
		e.focus = index + 1
		return FocusSignal{Index: e.focus, Move: true}
	}
	e.focus = index
	return FocusSignal{Index: e.focus}
}

// HandleBackspaceAt moves focus back one cell when the cell at index is
// already empty. It never clears the previous cell.
func (e *CodeEntry) HandleBackspaceAt(index int) FocusSignal {
	if index <= 0 || index >= CodeLength {
		return FocusSignal{Index: e.focus}
	}
	if e.cells[index] != "" {
		return FocusSignal{Index: e.focus}
	}
	e.focus = index - 1
	return FocusSignal{Index: e.focus, Move: true}
}

func (e *CodeEntry) IsComplete() bool {
	for _, c := range e.cells {
		if c == "" {
			return false
		}
	}
	return true
}

// ComposedCode concatenates the cells. Only meaningful once IsComplete.
func (e *CodeEntry) ComposedCode() string {
	return strings.Join(e.cells[:], "")
}

// Reset clears every cell and sends focus back to the first one.
func (e *CodeEntry) Reset() FocusSignal {
	e.cells = [CodeLength]string{}
	e.focus = 0
	return FocusSignal{Index: 0, Move: true}
}

func (e *CodeEntry) Focus() int { return e.focus }

func (e *CodeEntry) Cells() [CodeLength]string { return e.cells }

func isDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}
