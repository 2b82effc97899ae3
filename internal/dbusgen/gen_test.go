package dbusgen_test

import (
	"context"
	"strings"
	"testing"

	"github.com/darlinghq/darling-dbuskit"
	"github.com/darlinghq/darling-dbuskit/dbustest"
	"github.com/darlinghq/darling-dbuskit/internal/dbusgen"
)

func TestGen(t *testing.T) {
	bus := dbustest.New(t, false)
	conn := bus.MustConn(t)

	doc, err := conn.Peer("org.freedesktop.DBus").Object("/org/freedesktop/DBus").Introspect(context.Background())
	if err != nil {
		t.Fatalf("introspecting DBus: %v", err)
	}
	ifaces, err := dbuskit.ParseIntrospection(doc)
	if err != nil {
		t.Fatalf("parsing introspection: %v", err)
	}

	var busIface *dbuskit.Interface
	for _, iface := range ifaces {
		if iface.Name == "org.freedesktop.DBus" {
			busIface = iface
		}
	}
	if busIface == nil {
		t.Fatal("org.freedesktop.DBus did not introspect its own interface")
	}

	got, err := dbusgen.Interface(busIface)
	if err != nil {
		t.Fatalf("generating interface: %v", err)
	}
	if !strings.Contains(got, "type DBus struct") {
		t.Errorf("generated code missing expected wrapper type:\n%s", got)
	}
	if !strings.Contains(got, "func NewDBus(") {
		t.Errorf("generated code missing expected constructor:\n%s", got)
	}
	if !strings.Contains(got, `iface.p.Send(ctx, "listNames"`) {
		t.Errorf("generated code missing expected ListNames call:\n%s", got)
	}
}
