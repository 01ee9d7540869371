package appcast

import (
	"github.com/beevik/etree"
)

// findElement returns the first direct child of parent named tag in namespace uri.
// An empty uri matches elements outside any namespace.
func findElement(parent *etree.Element, uri, tag string) (*etree.Element, bool) {
	for _, e := range parent.ChildElements() {
		if e.Tag == tag && e.NamespaceURI() == uri {
			return e, true
		}
	}
	return nil, false
}

// findElements returns all direct children of parent named tag in namespace uri, in document order
func findElements(parent *etree.Element, uri, tag string) []*etree.Element {
	var res []*etree.Element
	for _, e := range parent.ChildElements() {
		if e.Tag == tag && e.NamespaceURI() == uri {
			res = append(res, e)
		}
	}
	return res
}

// findOrCreateElement returns the existing child or appends a new one created with the qualified name
func findOrCreateElement(parent *etree.Element, uri, tag, qname string) (el *etree.Element, created bool) {
	if e, ok := findElement(parent, uri, tag); ok {
		return e, false
	}
	return parent.CreateElement(qname), true
}

// findAttr returns the attribute key in namespace uri
func findAttr(e *etree.Element, uri, key string) (*etree.Attr, bool) {
	for i := range e.Attr {
		if e.Attr[i].Key == key && e.Attr[i].NamespaceURI() == uri {
			return &e.Attr[i], true
		}
	}
	return nil, false
}

// langAttr returns the value of xml:lang, the prefix is reserved and never declared
func langAttr(e *etree.Element) (string, bool) {
	for _, a := range e.Attr {
		if a.Space == "xml" && a.Key == "lang" {
			return a.Value, true
		}
	}
	return "", false
}

// clearChildren removes every child token of e
func clearChildren(e *etree.Element) {
	for i := len(e.Child) - 1; i >= 0; i-- {
		e.RemoveChildAt(i)
	}
}

// setText replaces the whole content of e with a single text node
func setText(e *etree.Element, text string) {
	clearChildren(e)
	e.SetText(text)
}

// setCData replaces the whole content of e with a single CDATA section
func setCData(e *etree.Element, text string) {
	clearChildren(e)
	e.SetCData(text)
}

// setAttrs discards all attributes of e and sets attrs in the given order
func setAttrs(e *etree.Element, attrs []attribute) {
	e.Attr = nil
	for _, a := range attrs {
		e.CreateAttr(a.Key, a.Value)
	}
}
