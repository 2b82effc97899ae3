// Package dbusgen renders a Go client wrapper for one D-Bus interface,
// given the Interface its introspection document described.
package dbusgen

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"go/format"
	"slices"
	"strings"
	"unicode"

	"github.com/darlinghq/darling-dbuskit"
)

type generator struct {
	out   bytes.Buffer
	iface *dbuskit.Interface
}

// Interface renders iface as Go declarations defining a typed wrapper
// struct around a *dbuskit.Proxy: one method per Interface method,
// each built on Proxy.Send. The output has no package clause or import
// block; the caller writes those ahead of it.
func Interface(iface *dbuskit.Interface) (string, error) {
	if iface == nil {
		return "", errors.New("no interface provided")
	}
	g := generator{iface: iface}
	g.render()

	ret, err := format.Source(g.out.Bytes())
	if err != nil {
		return g.out.String(), err
	}
	return string(ret), nil
}

func (g *generator) f(msg string, args ...any) {
	fmt.Fprintf(&g.out, msg, args...)
}

func (g *generator) render() {
	name := publicIdentifier(g.iface.Name)
	g.f(`
// %[1]s is a generated client wrapper for the %[2]q interface.
type %[1]s struct{ p *dbuskit.Proxy }

// New%[1]s returns a %[1]s wrapping the object at path, offered by peer.
func New%[1]s(conn *dbuskit.Conn, peer string, path dbuskit.ObjectPath) %[1]s {
	return %[1]s{dbuskit.NewProxy(conn, peer, path)}
}

`, name, g.iface.Name)

	methods := g.iface.Methods()
	slices.SortFunc(methods, func(a, b *dbuskit.Method) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, m := range methods {
		g.method(name, m)
	}

	props := g.iface.Properties()
	slices.SortFunc(props, func(a, b *dbuskit.PropertyDescriptor) int {
		return cmp.Compare(a.Name, b.Name)
	})
	for _, p := range props {
		g.property(name, p)
	}

	signals := g.iface.Signals()
	names := slices.Sorted(func(yield func(string) bool) {
		for n := range signals {
			if !yield(n) {
				return
			}
		}
	})
	for _, n := range names {
		g.signal(name, n, len(signals[n]))
	}
}

func (g *generator) method(ifaceType string, m *dbuskit.Method) {
	mname := publicIdentifier(m.Name)
	selector := m.Selector
	if selector == "" {
		names := make([]string, len(m.InArgs))
		for i, a := range m.InArgs {
			if a.Name != "" {
				names[i] = a.Name
			} else {
				names[i] = fmt.Sprintf("arg%d", i)
			}
		}
		selector = dbuskit.CanonicalSelector(m.Name, names)
	}

	g.f("// %s declaration: %s\n", mname, m.HostDeclaration())
	g.f("func (iface %s) %s(ctx context.Context", ifaceType, mname)
	for i := range m.InArgs {
		g.f(", arg%d dbuskit.HostValue", i)
	}
	g.f(") (")
	if len(m.OutArgs) > 0 {
		g.f("ret dbuskit.HostValue, ")
	}
	g.f("err error) {\n")
	if len(m.OutArgs) > 0 {
		g.f("ret, err = ")
	} else {
		g.f("_, err = ")
	}
	g.f("iface.p.Send(ctx, %q", selector)
	for i := range m.InArgs {
		g.f(", arg%d", i)
	}
	g.f(")\n")
	if len(m.OutArgs) > 0 {
		g.f("return ret, err\n")
	} else {
		g.f("return err\n")
	}
	g.f("}\n\n")
}

func (g *generator) property(ifaceType string, p *dbuskit.PropertyDescriptor) {
	pname := publicIdentifier(p.Name)
	g.f(`// %[2]s returns the current value of the %[3]q property.
func (iface %[1]s) %[2]s(ctx context.Context) (dbuskit.HostValue, error) {
	return iface.p.GetProperty(ctx, %[3]q)
}

`, ifaceType, pname, p.Name)
	if !p.ReadOnly {
		g.f(`// Set%[2]s writes the %[3]q property.
func (iface %[1]s) Set%[2]s(ctx context.Context, val dbuskit.HostValue) error {
	return iface.p.SetProperty(ctx, %[3]q, val)
}

`, ifaceType, pname, p.Name)
	}
}

func (g *generator) signal(ifaceType, name string, nargs int) {
	g.f(`// Subscribe%[2]s reports %[3]q notifications on conn.
func (iface %[1]s) Subscribe%[2]s(conn *dbuskit.Conn) *dbuskit.Subscription {
	return conn.Subscribe(%[4]q, %[3]q, iface.p.Object().Path())
}

`, ifaceType, publicIdentifier(name), name, g.iface.Name)
}

func identifier(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	fs := strings.Split(s, "_")
	for i := range fs {
		if i == 0 {
			first := true
			fs[i] = strings.Map(func(r rune) rune {
				if first {
					first = false
					return unicode.ToLower(r)
				}
				return r
			}, fs[i])
		} else if len(fs[i]) > 0 {
			fs[i] = strings.ToUpper(fs[i][:1]) + fs[i][1:]
		}
	}
	return strings.Join(fs, "")
}

func publicIdentifier(s string) string {
	id := identifier(s)
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
