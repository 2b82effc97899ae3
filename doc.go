// Package dbuskit bridges a dynamic, message-passing host object
// system onto the D-Bus wire protocol.
//
// Values crossing the bridge are boxed as HostValue (plain Go
// builtins, or one of the accessor interfaces in hostvalue.go) rather
// than bound to static Go struct types: an Argument tree, built once
// per distinct D-Bus type signature, drives both marshalling and
// unmarshalling dynamically. A Method pairs an Argument-described
// wire signature with a host selector; an Interface groups Methods,
// signals and properties under a D-Bus interface name and can be
// built either from introspection XML (ParseIntrospection, for a
// remote Proxy) or reflected off a host Go type's exported methods
// (BuildInterfaceFromHostClass/BuildInterfaceFromHostProtocol, for a
// locally exported object).
//
// Proxy and MethodCall (proxy.go, methodcall.go) implement the
// caller-facing side of the bridge: resolving a host selector against
// a remote object's introspected Interfaces, and round-tripping the
// call and its reply or exception.
package dbuskit
