package dbuskit

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/creachadair/mds/value"
)

// Match is a filter that selects which signals a Watcher delivers.
//
// Unlike the reference implementation's Match, this one filters
// against a Signal's generically-decoded Args rather than a
// statically-registered struct type, since this package never
// requires callers to register signal shapes up front.
type Match struct {
	sender       value.Maybe[string]
	object       value.Maybe[ObjectPath]
	objectPrefix value.Maybe[ObjectPath]
	iface        value.Maybe[string]
	member       value.Maybe[string]
	argStr       map[int]string
	argPath      map[int]ObjectPath
	arg0NS       value.Maybe[string]
}

// MatchSignal returns a Match for one interface/member signal pair.
func MatchSignal(iface, member string) *Match {
	return &Match{iface: value.Just(iface), member: value.Just(member)}
}

// MatchAllSignals returns a Match for every signal on the bus.
func MatchAllSignals() *Match {
	return &Match{}
}

// Peer restricts the match to signals sent by the given unique or
// well-known bus name.
func (m *Match) Peer(name string) *Match {
	m.sender = value.Just(name)
	return m
}

// Object restricts the match to a single source path.
func (m *Match) Object(o ObjectPath) *Match {
	m.objectPrefix = value.Absent[ObjectPath]()
	m.object = value.Just(o.Clean())
	return m
}

// ObjectPrefix restricts the match to Objects rooted at the given
// path prefix.
func (m *Match) ObjectPrefix(o ObjectPath) *Match {
	m.object = value.Absent[ObjectPath]()
	if o == "/" {
		// matches everything anyway, dbus-broker rejects the literal rule.
		m.objectPrefix = value.Absent[ObjectPath]()
	} else {
		m.objectPrefix = value.Just(o.Clean())
	}
	return m
}

// ArgStr restricts the match to signals whose i-th argument is the
// string val.
func (m *Match) ArgStr(i int, val string) *Match {
	if m.argStr == nil {
		m.argStr = map[int]string{}
	}
	m.argStr[i] = val
	return m
}

// ArgPathPrefix restricts the match to signals whose i-th argument is
// a string or ObjectPath equal to, or nested under, val.
func (m *Match) ArgPathPrefix(i int, val ObjectPath) *Match {
	if m.argPath == nil {
		m.argPath = map[int]ObjectPath{}
	}
	m.argPath[i] = val
	return m
}

// Arg0Namespace restricts the match to signals whose first argument
// is a dot-separated name in the val namespace.
func (m *Match) Arg0Namespace(val string) *Match {
	m.arg0NS = value.Just(val)
	return m
}

// filterString renders m in the match-rule syntax the bus's AddMatch
// method expects.
func (m *Match) filterString() string {
	ms := []string{"type='signal'"}
	kv := func(k, v string) {
		ms = append(ms, fmt.Sprintf("%s=%s", k, escapeMatchArg(v)))
	}

	if s, ok := m.sender.GetOK(); ok {
		kv("sender", s)
	}
	if o, ok := m.object.GetOK(); ok {
		kv("path", o.String())
	}
	if p, ok := m.objectPrefix.GetOK(); ok {
		kv("path_namespace", p.String())
	}
	if i, ok := m.iface.GetOK(); ok {
		kv("interface", i)
	}
	if mem, ok := m.member.GetOK(); ok {
		kv("member", mem)
	}
	for _, i := range slices.Sorted(maps.Keys(m.argStr)) {
		kv(fmt.Sprintf("arg%d", i), m.argStr[i])
	}
	for _, i := range slices.Sorted(maps.Keys(m.argPath)) {
		kv(fmt.Sprintf("arg%dpath", i), m.argPath[i].String())
	}
	if n, ok := m.arg0NS.GetOK(); ok {
		kv("arg0namespace", n)
	}

	return strings.Join(ms, ",")
}

// matches reports whether sig satisfies every filter m specifies.
func (m *Match) matches(sig Signal) bool {
	if s, ok := m.sender.GetOK(); ok && sig.Sender != s {
		return false
	}
	if o, ok := m.object.GetOK(); ok && sig.Path != o {
		return false
	}
	if p, ok := m.objectPrefix.GetOK(); ok && sig.Path != p && !sig.Path.IsChildOf(p) {
		return false
	}
	if i, ok := m.iface.GetOK(); ok && sig.Interface != i {
		return false
	}
	if mem, ok := m.member.GetOK(); ok && sig.Member != mem {
		return false
	}
	for i, want := range m.argStr {
		if i >= len(sig.Args) {
			return false
		}
		got, _ := sig.Args[i].(string)
		if got != want {
			return false
		}
	}
	for i, want := range m.argPath {
		if i >= len(sig.Args) {
			return false
		}
		var got ObjectPath
		switch v := sig.Args[i].(type) {
		case string:
			got = ObjectPath(v)
		case ObjectPath:
			got = v
		default:
			return false
		}
		if got != want && !got.IsChildOf(want) {
			return false
		}
	}
	if n, ok := m.arg0NS.GetOK(); ok {
		if len(sig.Args) == 0 {
			return false
		}
		got, _ := sig.Args[0].(string)
		if got != n && !strings.HasPrefix(got, n+".") {
			return false
		}
	}
	return true
}

func escapeMatchArg(s string) string {
	s = strings.ReplaceAll(s, "'", `'\''`)
	return "'" + s + "'"
}
