// Package uitree models an accessibility-tree snapshot of the app under test
// and the lookups the snapshot scenario performs against it.
package uitree

import (
	"strings"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
)

// XCUIElement type names as reported by WebDriverAgent.
const (
	TypeApplication    = "XCUIElementTypeApplication"
	TypeAlert          = "XCUIElementTypeAlert"
	TypeButton         = "XCUIElementTypeButton"
	TypeCell           = "XCUIElementTypeCell"
	TypeCollectionView = "XCUIElementTypeCollectionView"
	TypeImage          = "XCUIElementTypeImage"
	TypeNavigationBar  = "XCUIElementTypeNavigationBar"
	TypeOther          = "XCUIElementTypeOther"
	TypeStaticText     = "XCUIElementTypeStaticText"
	TypeWindow         = "XCUIElementTypeWindow"
)

// Element is one node of the accessibility tree.
type Element struct {
	Type     string // XCUIElementType
	Name     string // accessibility identifier
	Label    string // accessibility label
	Value    string
	Bounds   core.Bounds
	Enabled  bool
	Visible  bool
	Hittable bool
	Children []*Element
	Parent   *Element
}

// New builds an enabled, visible element and adopts children.
func New(elemType, label string, children ...*Element) *Element {
	e := &Element{Type: elemType, Label: label, Enabled: true, Visible: true, Hittable: true}
	e.Append(children...)
	return e
}

// Append adds children to e and sets their Parent.
func (e *Element) Append(children ...*Element) {
	for _, c := range children {
		c.Parent = e
		e.Children = append(e.Children, c)
	}
}

// Query selects elements by type and label, mirroring XCUITest element
// queries: app.buttons["Share My Photos"], app.collectionViews.firstMatch.
type Query struct {
	Type        string // empty matches any type
	Label       string // exact match against identifier or label
	LabelPrefix string // prefix match against label
}

// Matches reports whether e satisfies q.
func (q Query) Matches(e *Element) bool {
	if e == nil {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.Label != "" && e.Name != q.Label && e.Label != q.Label {
		return false
	}
	if q.LabelPrefix != "" && !strings.HasPrefix(e.Label, q.LabelPrefix) {
		return false
	}
	return true
}

// String renders the query for failure messages.
func (q Query) String() string {
	var b strings.Builder
	t := strings.TrimPrefix(q.Type, "XCUIElementType")
	if t == "" {
		t = "Any"
	}
	b.WriteString(t)
	switch {
	case q.Label != "":
		b.WriteString("[\"" + q.Label + "\"]")
	case q.LabelPrefix != "":
		b.WriteString("[label BEGINSWITH \"" + q.LabelPrefix + "\"]")
	}
	return b.String()
}

// Button returns a query for a button by identifier or label.
func Button(label string) Query { return Query{Type: TypeButton, Label: label} }

// StaticText returns a query for a text element by identifier or label.
func StaticText(label string) Query { return Query{Type: TypeStaticText, Label: label} }

// NavigationBar returns a query for a navigation bar by identifier or title.
func NavigationBar(title string) Query { return Query{Type: TypeNavigationBar, Label: title} }

// OfType returns a query matching every element of the given type.
func OfType(elemType string) Query { return Query{Type: elemType} }

// Descendants returns every element below e in document order.
func (e *Element) Descendants() []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	var walk func(*Element)
	walk = func(n *Element) {
		for _, c := range n.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(e)
	return out
}

// FindAll returns the descendants of e matching q in document order.
func (e *Element) FindAll(q Query) []*Element {
	var out []*Element
	for _, d := range e.Descendants() {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	return out
}

// Find returns the first descendant matching q, or nil.
func (e *Element) Find(q Query) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if q.Matches(c) {
			return c
		}
		if found := c.Find(q); found != nil {
			return found
		}
	}
	return nil
}

// Exists reports whether any descendant matches q.
func (e *Element) Exists(q Query) bool {
	return e.Find(q) != nil
}

// FindWithin returns the first element matching inner that sits below an
// element matching outer, e.g. a static text inside a navigation bar.
func (e *Element) FindWithin(outer, inner Query) *Element {
	for _, container := range e.FindAll(outer) {
		if found := container.Find(inner); found != nil {
			return found
		}
	}
	return nil
}

// Count returns the number of elements in the subtree rooted at e, e included.
func (e *Element) Count() int {
	if e == nil {
		return 0
	}
	return 1 + len(e.Descendants())
}
