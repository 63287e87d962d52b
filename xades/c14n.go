package xades

import (
	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// canonicalize returns the exclusive C14N form of el. The element is copied
// together with the namespace declarations it inherits, so the
// canonicalizer, which rewrites its input, never touches the document.
func canonicalize(el *etree.Element) ([]byte, error) {
	return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").Canonicalize(detach(el))
}

func detach(el *etree.Element) *etree.Element {
	c := el.Copy()

	declared := make(map[string]bool)
	for _, a := range c.Attr {
		if prefix, ok := nsDeclaration(a); ok {
			declared[prefix] = true
		}
	}

	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			prefix, ok := nsDeclaration(a)
			if !ok || declared[prefix] {
				continue
			}
			declared[prefix] = true
			if prefix == "" {
				c.CreateAttr("xmlns", a.Value)
			} else {
				c.CreateAttr("xmlns:"+prefix, a.Value)
			}
		}
	}
	return c
}

func nsDeclaration(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "xmlns":
		return a.Key, true
	case a.Space == "" && a.Key == "xmlns":
		return "", true
	}
	return "", false
}

// envelopedCanonical is the exclusive C14N of root with the signature
// child removed, the enveloped-signature transform.
func envelopedCanonical(root, sig *etree.Element) ([]byte, error) {
	c := detach(root)
	if sig != nil {
		c.RemoveChildAt(sig.Index())
	}
	return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("").Canonicalize(c)
}

func childElement(el *etree.Element, ns, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			return c
		}
	}
	return nil
}

func childElements(el *etree.Element, ns, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range el.ChildElements() {
		if c.Tag == tag && c.NamespaceURI() == ns {
			out = append(out, c)
		}
	}
	return out
}

func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("Id", "") == id {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}
