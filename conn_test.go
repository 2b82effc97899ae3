package dbuskit

import (
	"errors"
	"io"
	"net"
	"os"
	"testing"
)

type fakeTransport struct {
	writeErr error
}

func (f *fakeTransport) Read(p []byte) (int, error) { return 0, io.EOF }
func (f *fakeTransport) Close() error               { return nil }
func (f *fakeTransport) GetFiles(n int) ([]*os.File, error) {
	return nil, nil
}
func (f *fakeTransport) WriteWithFiles(bs []byte, fds []*os.File) (int, error) {
	return f.Write(bs)
}
func (f *fakeTransport) Write(p []byte) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	return len(p), nil
}

func callMsg(serial uint32) *header {
	return &header{
		Type:        msgTypeCall,
		Version:     1,
		Serial:      serial,
		Path:        "/org/example",
		Member:      "Ping",
		Destination: "org.example.Service",
	}
}

// TestWriteMsgWrapsDisconnect covers spec §4.6 step 2: a write failure
// caused by a closed transport surfaces as KindDisconnected.
func TestWriteMsgWrapsDisconnect(t *testing.T) {
	c := &Conn{t: &fakeTransport{writeErr: net.ErrClosed}}
	err := c.writeMsg(callMsg(1), nil)
	if err == nil {
		t.Fatal("writeMsg() = nil error, want KindDisconnected")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindDisconnected {
		t.Errorf("writeMsg() error = %#v, want *Error{Kind: KindDisconnected}", err)
	}
}

// TestWriteMsgWrapsGenericFailure covers the other enqueue-failure
// kind: a write failure not recognizable as a disconnect surfaces as
// KindOutOfMemory.
func TestWriteMsgWrapsGenericFailure(t *testing.T) {
	c := &Conn{t: &fakeTransport{writeErr: errors.New("transport backpressure")}}
	err := c.writeMsg(callMsg(1), nil)
	if err == nil {
		t.Fatal("writeMsg() = nil error, want KindOutOfMemory")
	}
	derr, ok := err.(*Error)
	if !ok || derr.Kind != KindOutOfMemory {
		t.Errorf("writeMsg() error = %#v, want *Error{Kind: KindOutOfMemory}", err)
	}
}

func TestWriteMsgSucceeds(t *testing.T) {
	c := &Conn{t: &fakeTransport{}}
	if err := c.writeMsg(callMsg(1), []byte("body")); err != nil {
		t.Fatalf("writeMsg: %v", err)
	}
}
