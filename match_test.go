package dbuskit

import "testing"

func TestMatch(t *testing.T) {
	sig := func(sender, path, iface, member string, args ...HostValue) Signal {
		return Signal{
			Sender:    sender,
			Path:      ObjectPath(path),
			Interface: iface,
			Member:    member,
			Args:      args,
		}
	}

	tests := []struct {
		name   string
		m      *Match
		filter string
		cases  []struct {
			sig  Signal
			want bool
		}
	}{
		{
			name:   "all signals",
			m:      MatchAllSignals(),
			filter: `type='signal'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal"), true},
				{sig("test2", "/test2", "org.test2", "Signal2"), true},
			},
		},
		{
			name:   "signal",
			m:      MatchSignal("org.test", "Signal"),
			filter: `type='signal',interface='org.test',member='Signal'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal"), true},
				{sig("test2", "/test2", "org.test2", "Signal2"), false},
			},
		},
		{
			name:   "signal sender",
			m:      MatchSignal("org.test", "Signal").Peer("test"),
			filter: `type='signal',sender='test',interface='org.test',member='Signal'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal"), true},
				{sig("test", "/test2", "org.test", "Signal"), true},
				{sig("test2", "/test", "org.test", "Signal"), false},
			},
		},
		{
			name:   "signal object",
			m:      MatchSignal("org.test", "Signal").Object("/test"),
			filter: `type='signal',path='/test',interface='org.test',member='Signal'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal"), true},
				{sig("test", "/test2", "org.test", "Signal"), false},
			},
		},
		{
			name:   "signal object prefix",
			m:      MatchSignal("org.test", "Signal").ObjectPrefix("/test"),
			filter: `type='signal',path_namespace='/test',interface='org.test',member='Signal'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal"), true},
				{sig("test", "/test/foo", "org.test", "Signal"), true},
				{sig("test", "/testf", "org.test", "Signal"), false},
				{sig("test", "/qux", "org.test", "Signal"), false},
			},
		},
		{
			name:   "signal arg",
			m:      MatchSignal("org.test", "Signal").ArgStr(0, "foo").ArgStr(2, "bar"),
			filter: `type='signal',interface='org.test',member='Signal',arg0='foo',arg2='bar'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal", "foo", "/unused", "bar"), true},
				{sig("test", "/test", "org.test", "Signal", "foo", "", "zot"), false},
				{sig("test", "/test", "org.test", "Signal"), false},
			},
		},
		{
			name:   "signal arg path prefix",
			m:      MatchSignal("org.test", "Signal").ArgPathPrefix(0, "/foo").ArgPathPrefix(1, "/bar"),
			filter: `type='signal',interface='org.test',member='Signal',arg0path='/foo',arg1path='/bar'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal", "/foo", ObjectPath("/bar")), true},
				{sig("test", "/test", "org.test", "Signal", "/foo/bar", ObjectPath("/bar/qux")), true},
				{sig("test", "/test", "org.test", "Signal", "/foo", ObjectPath("/zot")), false},
				{sig("test", "/test", "org.test", "Signal"), false},
			},
		},
		{
			name:   "signal arg0 namespace",
			m:      MatchSignal("org.test", "Signal").Arg0Namespace("foo.bar"),
			filter: `type='signal',interface='org.test',member='Signal',arg0namespace='foo.bar'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.test", "Signal", "foo.bar"), true},
				{sig("test", "/test", "org.test", "Signal", "foo.bar.baz"), true},
				{sig("test", "/test", "org.test", "Signal", "foo"), false},
				{sig("test", "/test", "org.test", "Signal", "foo.barbaz"), false},
				{sig("test", "/test", "org.test", "Signal"), false},
			},
		},
		{
			name:   "property change as ordinary signal",
			m:      MatchSignal("org.freedesktop.DBus.Properties", "PropertiesChanged").ArgStr(0, "org.test"),
			filter: `type='signal',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',arg0='org.test'`,
			cases: []struct {
				sig  Signal
				want bool
			}{
				{sig("test", "/test", "org.freedesktop.DBus.Properties", "PropertiesChanged", "org.test"), true},
				{sig("test", "/test", "org.freedesktop.DBus.Properties", "PropertiesChanged", "org.other"), false},
				{sig("test", "/test", "org.test", "Signal"), false},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := tc.m.filterString(), tc.filter; got != want {
				t.Errorf("wrong filter string\n  got: %s\n want: %s", got, want)
			}
			for _, c := range tc.cases {
				if got := tc.m.matches(c.sig); got != c.want {
					t.Errorf("matches(%+v) = %v, want %v", c.sig, got, c.want)
				}
			}
		})
	}
}
