package dbuskit

// Scope identifies the (endpoint, service) pair a Proxy belongs to.
// Two Proxies share scope iff their Scope values are Equal; object
// path arguments may only be forwarded verbatim within a scope.
type Scope struct {
	Endpoint string
	Service  string

	// Local is set on the scope of a call being serviced by a locally
	// exported object (a reply in flight, or a signal being emitted
	// from this process). Variant inference's fallback auto-export
	// rule only fires within a local scope.
	Local bool
}

// Equal reports whether s and o name the same (endpoint, service)
// pair. Local is not part of scope identity.
func (s Scope) Equal(o Scope) bool {
	return s.Endpoint == o.Endpoint && s.Service == o.Service
}

// Scoped is implemented by host values that carry their own Scope,
// typically a Proxy.
type Scoped interface {
	ScopeOf() Scope
}

// Exporter mints object paths for host values that have no D-Bus
// identity of their own yet, and resolves previously-exported paths
// back to their host value. It is the marshalling-time collaborator
// for the export registry described in the concurrency model.
type Exporter interface {
	ExportAuto(value HostValue) (ObjectPath, error)
	ResolvePath(path ObjectPath) (HostValue, bool)
}

// MarshalContext threads the scope and export collaborator that
// Argument's container and object-path logic need, without forcing
// every call site to pass them as separate parameters.
type MarshalContext struct {
	Scope  Scope
	Export Exporter

	// ProxyFactory builds the host value used to box an unmarshalled
	// object path (typically a new Proxy inheriting Scope.Endpoint and
	// Scope.Service). If nil, unmarshalling an object path yields the
	// bare ObjectPath value.
	ProxyFactory func(path ObjectPath) HostValue
}

func (mc *MarshalContext) scope() Scope {
	if mc == nil {
		return Scope{}
	}
	return mc.Scope
}

func (mc *MarshalContext) exporter() Exporter {
	if mc == nil {
		return nil
	}
	return mc.Export
}

func (mc *MarshalContext) proxyFactory() func(ObjectPath) HostValue {
	if mc == nil {
		return nil
	}
	return mc.ProxyFactory
}
