package dbuskit

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/darlinghq/darling-dbuskit/fragments"
)

type recordingTransport struct {
	writes [][]byte
}

func (r *recordingTransport) Read(p []byte) (int, error) { return 0, io.EOF }
func (r *recordingTransport) Close() error               { return nil }
func (r *recordingTransport) GetFiles(n int) ([]*os.File, error) {
	return nil, nil
}
func (r *recordingTransport) WriteWithFiles(bs []byte, fds []*os.File) (int, error) {
	return r.Write(bs)
}
func (r *recordingTransport) Write(p []byte) (int, error) {
	r.writes = append(r.writes, append([]byte(nil), p...))
	return len(p), nil
}

type echoHost struct{}

func (echoHost) Echo(ctx context.Context, s string) (string, error) { return s, nil }

// TestDispatchCallEchoesArgument covers S1: a call against a locally
// exported object is unmarshalled, dispatched to its handler, and the
// handler's result is marshalled back as the reply body.
func TestDispatchCallEchoesArgument(t *testing.T) {
	iface, err := BuildInterfaceFromHostClass("TestEcho", echoHost{})
	if err != nil {
		t.Fatalf("BuildInterfaceFromHostClass: %v", err)
	}

	rt := &recordingTransport{}
	c := &Conn{
		t:        rt,
		clientID: "org.example.me",
		calls:    map[uint32]*pendingCall{},
		exported: map[ObjectPath]map[string]*Interface{
			"/org/example": {iface.Name: iface},
		},
	}

	var bodyEnc fragments.Encoder
	bodyEnc.Order = fragments.NativeEndian
	(&Argument{DBusType: TypeString}).Marshal(&bodyEnc, "hello", nil)

	msg := &wireMsg{
		header: header{
			Type:        msgTypeCall,
			Version:     1,
			Serial:      5,
			Path:        "/org/example",
			Interface:   iface.Name,
			Member:      "Echo",
			Destination: c.clientID,
			Sender:      "org.example.caller",
		},
		order: fragments.NativeEndian,
		body:  bodyEnc.Out,
	}

	c.dispatchCall(msg)

	if len(rt.writes) != 2 {
		t.Fatalf("got %d writes, want 2 (header, body)", len(rt.writes))
	}

	var respHdr header
	hdec := &fragments.Decoder{Order: fragments.NativeEndian, In: bytes.NewReader(rt.writes[0])}
	if err := unmarshalHeader(hdec, &respHdr); err != nil {
		t.Fatalf("unmarshalHeader: %v", err)
	}
	if respHdr.Type != msgTypeReturn {
		t.Fatalf("reply Type = %v, want msgTypeReturn", respHdr.Type)
	}
	if respHdr.ReplySerial != 5 {
		t.Errorf("ReplySerial = %d, want 5", respHdr.ReplySerial)
	}

	bdec := &fragments.Decoder{Order: fragments.NativeEndian, In: bytes.NewReader(rt.writes[1])}
	got, err := (&Argument{DBusType: TypeString}).Unmarshal(bdec, nil)
	if err != nil {
		t.Fatalf("Unmarshal reply body: %v", err)
	}
	if got != "hello" {
		t.Errorf("reply body = %q, want %q", got, "hello")
	}
}

// TestDispatchAdminCallNoReplyLeavesNoPendingCall covers S5: a oneway
// call does not leave an entry in the connection's pending-call table
// once it returns.
func TestDispatchAdminCallNoReplyLeavesNoPendingCall(t *testing.T) {
	c := &Conn{
		t:        &recordingTransport{},
		clientID: "org.example.me",
		calls:    map[uint32]*pendingCall{},
	}
	m := &Method{Name: "Notify", NoReply: true}

	ret, err := c.dispatchAdminCall(context.Background(), "org.example.Service", "/org/example", "org.example.Iface", m, nil)
	if err != nil {
		t.Fatalf("dispatchAdminCall: %v", err)
	}
	if _, ok := ret.(Null); !ok {
		t.Errorf("dispatchAdminCall() = %#v, want Null{}", ret)
	}
	if len(c.calls) != 0 {
		t.Errorf("c.calls has %d entries after a NoReply call, want 0", len(c.calls))
	}
}
