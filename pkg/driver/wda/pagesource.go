package wda

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/comesee-snapshots/pkg/core"
	"github.com/devicelab-dev/comesee-snapshots/pkg/uitree"
)

// ParsePageSource parses iOS UI hierarchy XML into an element tree.
// WDA emits one XML element per XCUIElement with attributes:
// - type: XCUIElementTypeButton, XCUIElementTypeCell, etc.
// - name: accessibility identifier
// - label: accessibility label (visible text)
// - value: current value
// - enabled, visible, hittable: states
// - x, y, width, height: bounds
// Appium wraps the tree in an AppiumAUT element, which is skipped.
func ParsePageSource(xmlData string) (*uitree.Element, error) {
	decoder := xml.NewDecoder(strings.NewReader(xmlData))

	var parseElement func(start xml.StartElement) (*uitree.Element, error)
	parseElement = func(start xml.StartElement) (*uitree.Element, error) {
		elem := newElement(start)
		for {
			token, err := decoder.Token()
			if err != nil {
				return nil, err
			}
			switch t := token.(type) {
			case xml.StartElement:
				child, err := parseElement(t)
				if err != nil {
					return nil, err
				}
				elem.Append(child)
			case xml.EndElement:
				return elem, nil
			}
		}
	}

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no elements found in page source")
		}
		if err != nil {
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local == "AppiumAUT" {
			continue
		}
		return parseElement(start)
	}
}

func newElement(start xml.StartElement) *uitree.Element {
	elem := &uitree.Element{
		Type:    start.Name.Local,
		Enabled: true, // default
		Visible: true, // default
	}
	hittableSet := false

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "type":
			elem.Type = attr.Value
		case "name":
			elem.Name = attr.Value
		case "label":
			elem.Label = attr.Value
		case "value":
			elem.Value = attr.Value
		case "enabled":
			elem.Enabled = attr.Value == "true"
		case "visible":
			elem.Visible = attr.Value == "true"
		case "hittable":
			elem.Hittable = attr.Value == "true"
			hittableSet = true
		case "x":
			elem.Bounds.X = atoi(attr.Value)
		case "y":
			elem.Bounds.Y = atoi(attr.Value)
		case "width":
			elem.Bounds.Width = atoi(attr.Value)
		case "height":
			elem.Bounds.Height = atoi(attr.Value)
		}
	}

	// Older WDA builds omit hittable; fall back to visible and enabled.
	if !hittableSet {
		elem.Hittable = elem.Visible && elem.Enabled
	}
	return elem
}

func atoi(s string) int {
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

// boundsCenter returns the tap point for an element.
func boundsCenter(b core.Bounds) (float64, float64) {
	x, y := b.Center()
	return float64(x), float64(y)
}
