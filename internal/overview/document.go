package overview

import "sync"

// Display values used by the toggles.
const (
	DisplayNone          = "none"
	DisplayInline        = "inline"
	DisplayTableRowGroup = "table-row-group"
)

// Element is the part of a page element the helpers touch.
type Element interface {
	Display() string
	SetDisplay(display string)
	InnerHTML() string
	SetInnerHTML(html string)
}

// Document resolves elements by id.
type Document interface {
	ElementByID(id string) (Element, bool)
}

// MemoryElement is an Element held in memory.
type MemoryElement struct {
	mu      sync.Mutex
	display string
	html    string
}

// NewMemoryElement creates an element with the given display and content.
func NewMemoryElement(display, html string) *MemoryElement {
	return &MemoryElement{display: display, html: html}
}

func (e *MemoryElement) Display() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.display
}

func (e *MemoryElement) SetDisplay(display string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.display = display
}

func (e *MemoryElement) InnerHTML() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.html
}

func (e *MemoryElement) SetInnerHTML(html string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.html = html
}

// MemoryDocument is a Document backed by a map of elements.
type MemoryDocument struct {
	mu       sync.RWMutex
	elements map[string]*MemoryElement
}

// NewMemoryDocument creates an empty document.
func NewMemoryDocument() *MemoryDocument {
	return &MemoryDocument{elements: make(map[string]*MemoryElement)}
}

// Add registers el under id, replacing any element with the same id.
func (d *MemoryDocument) Add(id string, el *MemoryElement) *MemoryElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[id] = el
	return el
}

// Remove drops the element with id.
func (d *MemoryDocument) Remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, id)
}

// ElementByID implements Document.
func (d *MemoryDocument) ElementByID(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	el, ok := d.elements[id]
	if !ok {
		return nil, false
	}
	return el, true
}
