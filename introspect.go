package dbuskit

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// ParseIntrospection parses a D-Bus introspection XML document into
// one Interface per <interface> node, each fully installed (its
// dispatch table built from canonical selectors) and ready to attach
// to a Proxy.
func ParseIntrospection(doc string) ([]*Interface, error) {
	var raw introspectNode
	if err := xml.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, wrapErr(KindMalformedSignature, err, "parsing introspection XML")
	}
	out := make([]*Interface, 0, len(raw.Interfaces))
	for _, ri := range raw.Interfaces {
		iface, err := ri.toInterface()
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", ri.Name, err)
		}
		out = append(out, iface)
	}
	return out, nil
}

// ChildPaths returns the relative paths of the child nodes named in
// an introspection XML document, as used when walking an object tree
// rooted at a Proxy.
func ChildPaths(doc string) ([]string, error) {
	var raw introspectNode
	if err := xml.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, wrapErr(KindMalformedSignature, err, "parsing introspection XML")
	}
	out := make([]string, 0, len(raw.Children))
	for _, c := range raw.Children {
		out = append(out, c.Name)
	}
	return out, nil
}

type introspectNode struct {
	XMLName    struct{}             `xml:"node"`
	Interfaces []introspectIface    `xml:"interface"`
	Children   []introspectChild    `xml:"node"`
}

type introspectChild struct {
	Name string `xml:"name,attr"`
}

type introspectIface struct {
	Name       string               `xml:"name,attr"`
	Methods    []introspectMethod   `xml:"method"`
	Signals    []introspectSignal   `xml:"signal"`
	Properties []introspectProperty `xml:"property"`
}

func (ri introspectIface) toInterface() (*Interface, error) {
	iface := NewInterface(ri.Name)
	for _, rm := range ri.Methods {
		m, err := rm.toMethod()
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", rm.Name, err)
		}
		iface.AddMethod(m)
	}
	for _, rs := range ri.Signals {
		args, err := rs.toArgs()
		if err != nil {
			return nil, fmt.Errorf("signal %s: %w", rs.Name, err)
		}
		iface.AddSignal(rs.Name, args)
	}
	for _, rp := range ri.Properties {
		p, err := rp.toProperty()
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", rp.Name, err)
		}
		iface.AddProperty(p)
	}
	iface.InstallMethods()
	iface.InstallProperties()
	return iface, nil
}

type introspectArg struct {
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	Direction string `xml:"direction,attr"`
}

type introspectAnnotation struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type introspectMethod struct {
	Name        string                  `xml:"name,attr"`
	Args        []introspectArg         `xml:"arg"`
	Annotations []introspectAnnotation  `xml:"annotation"`
}

func (rm introspectMethod) toMethod() (*Method, error) {
	m := &Method{Name: rm.Name}
	for _, a := range rm.Args {
		arg, err := NewArgument(a.Type)
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", a.Name, err)
		}
		arg.Name = a.Name
		if a.Direction == "in" {
			m.InArgs = append(m.InArgs, arg)
		} else {
			m.OutArgs = append(m.OutArgs, arg)
		}
	}
	for _, ann := range rm.Annotations {
		switch ann.Name {
		case "org.freedesktop.DBus.Deprecated":
			m.Deprecated = ann.Value == "true"
		case "org.freedesktop.DBus.Method.NoReply":
			m.NoReply = ann.Value == "true"
		case "org.gnustep.objc.selector":
			m.Selector = ann.Value
		}
	}
	return m, nil
}

type introspectSignal struct {
	Name string          `xml:"name,attr"`
	Args []introspectArg `xml:"arg"`
}

func (rs introspectSignal) toArgs() ([]*Argument, error) {
	var out []*Argument
	for _, a := range rs.Args {
		arg, err := NewArgument(a.Type)
		if err != nil {
			return nil, fmt.Errorf("arg %s: %w", a.Name, err)
		}
		arg.Name = a.Name
		out = append(out, arg)
	}
	return out, nil
}

type introspectProperty struct {
	Name        string                 `xml:"name,attr"`
	Type        string                 `xml:"type,attr"`
	Access      string                 `xml:"access,attr"`
	Annotations []introspectAnnotation `xml:"annotation"`
}

func (rp introspectProperty) toProperty() (*PropertyDescriptor, error) {
	typ, err := NewArgument(rp.Type)
	if err != nil {
		return nil, err
	}
	p := &PropertyDescriptor{Name: rp.Name, Type: typ}
	switch rp.Access {
	case "read":
		p.ReadOnly = true
	case "write", "readwrite":
		p.ReadOnly = false
	default:
		return nil, fmt.Errorf("unknown property access value %q", rp.Access)
	}
	for _, ann := range rp.Annotations {
		if ann.Name == "org.freedesktop.DBus.Deprecated" {
			p.Deprecated = ann.Value == "true"
		}
	}
	return p, nil
}

// RenderIntrospection builds an introspection XML document describing
// ifaces and childPaths, the mirror image of ParseIntrospection.
func RenderIntrospection(ifaces []*Interface, childPaths []string) string {
	var sb strings.Builder
	writeLine := func(s string) { sb.WriteString(s); sb.WriteByte('\n') }

	writeLine(`<?xml version="1.0" encoding="UTF-8"?>`)
	writeLine(`<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN" "http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">`)
	writeLine(`<node>`)
	for _, iface := range ifaces {
		writeLine(fmt.Sprintf(`  <interface name="%s">`, iface.Name))
		for _, m := range iface.Methods() {
			writeLine(fmt.Sprintf(`    <method name="%s">`, m.Name))
			for _, a := range m.InArgs {
				writeLine(fmt.Sprintf(`      <arg name="%s" type="%s" direction="in"/>`, a.Name, a.Signature()))
			}
			for _, a := range m.OutArgs {
				writeLine(fmt.Sprintf(`      <arg name="%s" type="%s" direction="out"/>`, a.Name, a.Signature()))
			}
			writeLine(`    </method>`)
		}
		for _, p := range iface.Properties() {
			access := "read"
			if !p.ReadOnly {
				access = "readwrite"
			}
			writeLine(fmt.Sprintf(`    <property name="%s" type="%s" access="%s"/>`, p.Name, p.Type.Signature(), access))
		}
		writeLine(`  </interface>`)
	}
	for _, c := range childPaths {
		writeLine(fmt.Sprintf(`  <node name="%s"/>`, c))
	}
	writeLine(`</node>`)
	return sb.String()
}
