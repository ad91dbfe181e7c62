package overview

import (
	"errors"
	"fmt"
)

// ErrElementNotFound is returned when an id does not resolve to an element.
var ErrElementNotFound = errors.New("element not found")

// ToggleVisibility switches a table section between hidden and shown as a
// table-row-group.
func ToggleVisibility(doc Document, id string) error {
	return toggle(doc, id, DisplayNone, DisplayTableRowGroup, DisplayNone)
}

// ToggleVisibility2 switches an inline element between shown and hidden.
func ToggleVisibility2(doc Document, id string) error {
	return toggle(doc, id, DisplayInline, DisplayNone, DisplayInline)
}

// toggle sets display to match when it currently equals when, else to otherwise.
func toggle(doc Document, id, when, match, otherwise string) error {
	el, ok := doc.ElementByID(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrElementNotFound, id)
	}
	if el.Display() == when {
		el.SetDisplay(match)
	} else {
		el.SetDisplay(otherwise)
	}
	return nil
}
