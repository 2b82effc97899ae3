package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"regexp"
	"strings"

	"github.com/creachadair/mds/heapq"
	"github.com/darlinghq/darling-dbuskit"
)

type indenter struct {
	prefix     string
	indentNext bool
}

func (i *indenter) v(v any) {
	fmt.Fprintf(i, "%v\n", v)
}

func (i *indenter) f(msg string, args ...any) {
	fmt.Fprintf(i, msg+"\n", args...)
}

func (i *indenter) Write(bs []byte) (int, error) {
	ret := 0
	for len(bs) > 0 {
		if i.indentNext {
			i.indentNext = false
			if _, err := io.WriteString(os.Stdout, i.prefix); err != nil {
				return ret, err
			}
		}

		var wr []byte
		idx := bytes.IndexByte(bs, '\n')
		if idx >= 0 {
			i.indentNext = true
			wr, bs = bs[:idx+1], bs[idx+1:]
		} else {
			wr, bs = bs, nil
		}

		n, err := os.Stdout.Write(wr)
		ret += n
		if err != nil {
			return ret, err
		}
	}
	return ret, nil
}

func (i *indenter) indent(n int) {
	i.prefix = strings.Repeat("  ", n)
}

// listPeers enumerates bus names matching peerFilter. Unique
// connection names (":1.234"-style) are skipped by default, since
// they frequently don't respond correctly to introspection.
func listPeers(ctx context.Context, conn *dbuskit.Conn, peerFilter string) iter.Seq2[string, error] {
	if peerFilter == "" {
		peerFilter = `^[^:].*`
	}
	return func(yield func(string, error) bool) {
		f, err := regexp.Compile(peerFilter)
		if err != nil {
			yield("", err)
			return
		}
		names, err := conn.ListNames(ctx)
		if err != nil {
			yield("", err)
			return
		}
		for _, n := range names {
			if !f.MatchString(n) {
				continue
			}
			if !yield(n, nil) {
				return
			}
		}
	}
}

// objectInterface pairs one introspected Interface with the path it
// was found at.
type objectInterface struct {
	Path ObjectPathAndPeer
	*dbuskit.Interface
}

// ObjectPathAndPeer is the (peer, path) pair an interface was found
// at, rendered as "peer/path".
type ObjectPathAndPeer struct {
	Peer string
	Path dbuskit.ObjectPath
}

func (o ObjectPathAndPeer) String() string { return o.Peer + string(o.Path) }

// walkInterfaces walks every object path reachable from "/" on peer,
// always visiting the lexicographically smallest pending path next,
// introspecting each and yielding the interfaces whose
// name matches interfaceFilter, restricted to paths matching
// objectFilter.
func walkInterfaces(ctx context.Context, conn *dbuskit.Conn, peer, objectFilter, interfaceFilter string) iter.Seq2[objectInterface, error] {
	return func(yield func(objectInterface, error) bool) {
		om, err := regexp.Compile(objectFilter)
		if err != nil {
			yield(objectInterface{}, err)
			return
		}
		im, err := regexp.Compile(interfaceFilter)
		if err != nil {
			yield(objectInterface{}, err)
			return
		}

		paths := heapq.New(func(a, b dbuskit.ObjectPath) int {
			if a < b {
				return -1
			} else if a > b {
				return 1
			}
			return 0
		})
		paths.Add(dbuskit.ObjectPath("/"))
		for !paths.IsEmpty() {
			path, _ := paths.Pop()
			obj := conn.Peer(peer).Object(path)
			doc, err := obj.Introspect(ctx)
			if err != nil {
				if !yield(objectInterface{}, err) {
					return
				}
				continue
			}
			children, err := dbuskit.ChildPaths(doc)
			if err == nil {
				for _, c := range children {
					paths.Add(path.Child(c))
				}
			}
			if !om.MatchString(string(path)) {
				continue
			}
			ifaces, err := dbuskit.ParseIntrospection(doc)
			if err != nil {
				if !yield(objectInterface{}, err) {
					return
				}
				continue
			}
			for _, iface := range ifaces {
				if !im.MatchString(iface.Name) {
					continue
				}
				loc := ObjectPathAndPeer{peer, path}
				if !yield(objectInterface{loc, iface}, nil) {
					return
				}
			}
		}
	}
}

func growTo(s []string, n int) []string {
	for len(s) < n {
		s = append(s, "")
	}
	return s
}
