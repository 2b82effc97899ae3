package dbuskit

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// PropertyDescriptor describes one property an Interface exposes.
type PropertyDescriptor struct {
	Name       string
	Type       *Argument
	ReadOnly   bool
	Deprecated bool
}

// Interface is a named, self-contained set of methods, signals and
// properties. An Interface built from introspection XML describes
// what a remote Proxy may call; an Interface built from a host class
// or protocol describes what a locally exported object answers to.
type Interface struct {
	Name string

	mu         sync.Mutex
	methods    map[string]*Method
	signals    map[string][]*Argument
	properties map[string]*PropertyDescriptor
	dispatch   map[string]*Method
}

// NewInterface returns an empty Interface named name.
func NewInterface(name string) *Interface {
	return &Interface{
		Name:       name,
		methods:    make(map[string]*Method),
		signals:    make(map[string][]*Argument),
		properties: make(map[string]*PropertyDescriptor),
		dispatch:   make(map[string]*Method),
	}
}

// AddMethod registers m under its D-Bus member name. A duplicate add
// overwrites the previous entry: last writer wins, so that a fresh
// introspection reload always supplies canonical data.
func (i *Interface) AddMethod(m *Method) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.methods[m.Name] = m
}

// AddSignal registers a signal's argument shape under its D-Bus
// member name.
func (i *Interface) AddSignal(name string, args []*Argument) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.signals[name] = args
}

// AddProperty registers p under its name.
func (i *Interface) AddProperty(p *PropertyDescriptor) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.properties[p.Name] = p
}

// Methods returns a snapshot of every registered method.
func (i *Interface) Methods() []*Method {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*Method, 0, len(i.methods))
	for _, m := range i.methods {
		out = append(out, m)
	}
	return out
}

// Method looks up a method by its D-Bus member name.
func (i *Interface) Method(name string) (*Method, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	m, ok := i.methods[name]
	return m, ok
}

// Signals returns a snapshot of every registered signal's argument
// shape, keyed by D-Bus member name.
func (i *Interface) Signals() map[string][]*Argument {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string][]*Argument, len(i.signals))
	for name, args := range i.signals {
		out[name] = args
	}
	return out
}

// Properties returns a snapshot of every registered property.
func (i *Interface) Properties() []*PropertyDescriptor {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*PropertyDescriptor, 0, len(i.properties))
	for _, p := range i.properties {
		out = append(out, p)
	}
	return out
}

// InstallMethod inserts m into the dispatch table under selector.
// Installing is idempotent, and distinct selectors may map to the
// same Method.
func (i *Interface) InstallMethod(m *Method, selector string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.dispatch[selector] = m
}

// Dispatch resolves a host selector to the Method that answers it.
func (i *Interface) Dispatch(selector string) (*Method, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	m, ok := i.dispatch[selector]
	return m, ok
}

// inArgNames returns the names of m's in-args, in order, falling back
// to "arg<index>" for an anonymous argument (introspection XML does
// not require argument names).
func inArgNames(m *Method) []string {
	names := make([]string, len(m.InArgs))
	for idx, a := range m.InArgs {
		if a.Name != "" {
			names[idx] = a.Name
		} else {
			names[idx] = fmt.Sprintf("arg%d", idx)
		}
	}
	return names
}

// InstallMethods bulk-installs every registered method under its
// canonical selector, honouring a selector already set on the Method
// (the introspection loader copies a method node's
// org.gnustep.objc.selector annotation into Method.Selector before
// InstallMethods runs).
func (i *Interface) InstallMethods() {
	i.mu.Lock()
	methods := make([]*Method, 0, len(i.methods))
	for _, m := range i.methods {
		methods = append(methods, m)
	}
	i.mu.Unlock()

	for _, m := range methods {
		selector := m.Selector
		if selector == "" {
			selector = CanonicalSelector(m.Name, inArgNames(m))
			m.Selector = selector
		}
		i.InstallMethod(m, selector)
	}
}

// InstallProperties bulk-installs a getter selector (the property
// name as-is) and, for a read-write property, a setter selector
// ("set<PropertyName>") into the dispatch table, pointing at synthetic
// Methods named "Get:<name>" and "Set:<name>" that carry the
// property's type. These Methods have no Handler and are not added to
// Methods(); they do not call org.freedesktop.DBus.Properties Get/Set
// themselves.
func (i *Interface) InstallProperties() {
	for _, p := range i.Properties() {
		getter := &Method{Name: "Get:" + p.Name, OutArgs: []*Argument{p.Type}, Selector: p.Name}
		i.InstallMethod(getter, p.Name)
		if !p.ReadOnly {
			setter := &Method{Name: "Set:" + p.Name, InArgs: []*Argument{p.Type}, Selector: SetterSelector(p.Name)}
			i.InstallMethod(setter, SetterSelector(p.Name))
		}
	}
}

// BuildInterfaceFromHostClass reflects over every public, exported
// method value has that matches the supported handler shapes, and
// synthesizes a Method for each. The resulting Interface's name has
// the form "org.gnustep.objc.class.<ClassName>", grounded on the
// reference implementation's Conn.Handle + handlerForFunc reflection
// machinery, generalized here to build a whole Interface instead of
// registering one handler at a time.
func BuildInterfaceFromHostClass(className string, value any) (*Interface, error) {
	iface := NewInterface(canonicalInterfaceName("class", className))
	rv := reflect.ValueOf(value)
	rt := rv.Type()
	for mi := 0; mi < rt.NumMethod(); mi++ {
		sm := rt.Method(mi)
		if sm.PkgPath != "" {
			continue // unexported
		}
		m, err := methodFromHostFunc(sm.Name, rv.Method(mi))
		if err != nil {
			return nil, fmt.Errorf("building interface for %s: method %s: %w", className, sm.Name, err)
		}
		iface.AddMethod(m)
	}
	iface.InstallMethods()
	return iface, nil
}

// BuildInterfaceFromHostProtocol is the protocol-typed counterpart of
// BuildInterfaceFromHostClass: protocolType must be an interface type,
// and value must implement it. The resulting Interface's name has the
// form "org.gnustep.objc.protocol.<ProtocolName>".
func BuildInterfaceFromHostProtocol(protocolName string, protocolType reflect.Type, value any) (*Interface, error) {
	if protocolType.Kind() != reflect.Interface {
		return nil, fmt.Errorf("BuildInterfaceFromHostProtocol: %s is not an interface type", protocolType)
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().Implements(protocolType) {
		return nil, fmt.Errorf("BuildInterfaceFromHostProtocol: %T does not implement %s", value, protocolType)
	}
	iface := NewInterface(canonicalInterfaceName("protocol", protocolName))
	for mi := 0; mi < protocolType.NumMethod(); mi++ {
		sm := protocolType.Method(mi)
		m, err := methodFromHostFunc(sm.Name, rv.MethodByName(sm.Name))
		if err != nil {
			return nil, fmt.Errorf("building interface for protocol %s: method %s: %w", protocolName, sm.Name, err)
		}
		iface.AddMethod(m)
	}
	iface.InstallMethods()
	return iface, nil
}

// methodFromHostFunc builds a Method from a bound Go method value
// whose signature is one of:
//
//	func(context.Context) error
//	func(context.Context) (RetT, error)
//	func(context.Context, ArgT...) error
//	func(context.Context, ArgT...) (RetT, error)
func methodFromHostFunc(name string, fn reflect.Value) (*Method, error) {
	t := fn.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("not a function")
	}
	ni, no := t.NumIn(), t.NumOut()
	if ni < 1 || no < 1 || no > 2 {
		return nil, fmt.Errorf("unsupported method signature %s", t)
	}
	if !t.In(0).Implements(reflect.TypeFor[context.Context]()) {
		return nil, fmt.Errorf("first parameter must be context.Context, got %s", t)
	}
	if !t.Out(no - 1).Implements(reflect.TypeFor[error]()) {
		return nil, fmt.Errorf("last return value must be error, got %s", t)
	}

	m := &Method{Name: name}
	for i := 1; i < ni; i++ {
		a, err := argumentForGoType(t.In(i))
		if err != nil {
			return nil, fmt.Errorf("in-arg %d: %w", i-1, err)
		}
		m.InArgs = append(m.InArgs, a)
	}
	if no == 2 {
		a, err := argumentForGoType(t.Out(0))
		if err != nil {
			return nil, fmt.Errorf("return value: %w", err)
		}
		m.OutArgs = append(m.OutArgs, a)
	}

	m.Handler = func(ctx context.Context, inv *Invocation) (HostValue, error) {
		callArgs := make([]reflect.Value, ni)
		callArgs[0] = reflect.ValueOf(ctx)
		for i := 1; i < ni; i++ {
			callArgs[i] = reflect.ValueOf(inv.Args[i-1])
		}
		rets := fn.Call(callArgs)
		if err, ok := rets[no-1].Interface().(error); ok && err != nil {
			return nil, err
		}
		if no == 2 {
			return rets[0].Interface(), nil
		}
		return Null{}, nil
	}
	return m, nil
}

// argumentForGoType maps a Go static type to the Argument that
// represents it on the wire. This is used only when synthesizing an
// Interface from a host class or protocol's reflected method
// signatures; the hot marshal/unmarshal path never calls it, since by
// then the Argument tree has already been built once.
func argumentForGoType(t reflect.Type) (*Argument, error) {
	switch t.Kind() {
	case reflect.Bool:
		return &Argument{DBusType: TypeBoolean}, nil
	case reflect.Uint8:
		return &Argument{DBusType: TypeByte}, nil
	case reflect.Int16:
		return &Argument{DBusType: TypeInt16}, nil
	case reflect.Uint16:
		return &Argument{DBusType: TypeUint16}, nil
	case reflect.Int32, reflect.Int:
		return &Argument{DBusType: TypeInt32}, nil
	case reflect.Uint32, reflect.Uint:
		return &Argument{DBusType: TypeUint32}, nil
	case reflect.Int64:
		return &Argument{DBusType: TypeInt64}, nil
	case reflect.Uint64:
		return &Argument{DBusType: TypeUint64}, nil
	case reflect.Float32, reflect.Float64:
		return &Argument{DBusType: TypeDouble}, nil
	case reflect.String:
		return &Argument{DBusType: TypeString}, nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Argument{DBusType: TypeArray, Children: []*Argument{{DBusType: TypeByte}}}, nil
		}
		elem, err := argumentForGoType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Argument{DBusType: TypeArray, Children: []*Argument{elem}}, nil
	case reflect.Map:
		key, err := argumentForGoType(t.Key())
		if err != nil {
			return nil, err
		}
		val, err := argumentForGoType(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Argument{
			DBusType: TypeArray,
			IsDict:   true,
			Children: []*Argument{{DBusType: TypeDictOpen, Children: []*Argument{key, val}}},
		}, nil
	case reflect.Struct:
		var children []*Argument
		for fi := 0; fi < t.NumField(); fi++ {
			f := t.Field(fi)
			if f.PkgPath != "" {
				continue
			}
			a, err := argumentForGoType(f.Type)
			if err != nil {
				return nil, err
			}
			children = append(children, a)
		}
		return &Argument{DBusType: TypeStructOpen, Children: children}, nil
	case reflect.Interface:
		if t == reflect.TypeFor[HostValue]() {
			return &Argument{DBusType: TypeVariant}, nil
		}
		return nil, fmt.Errorf("cannot represent interface type %s on the wire", t)
	default:
		if t == reflect.TypeFor[ObjectPath]() {
			return &Argument{DBusType: TypeObjectPath}, nil
		}
		return nil, fmt.Errorf("cannot represent Go type %s on the wire", t)
	}
}

// canonicalInterfaceName derives "org.gnustep.objc.class.<Name>" or
// "...protocol.<Name>" from a Go type name, stripping any package
// qualifier.
func canonicalInterfaceName(kind, typeName string) string {
	if idx := strings.LastIndexByte(typeName, '.'); idx >= 0 {
		typeName = typeName[idx+1:]
	}
	return "org.gnustep.objc." + kind + "." + typeName
}
