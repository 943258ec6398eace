package registry

// EventKind says what changed in the registry.
type EventKind uint8

const (
	// BindingChanged: the translator bound to Variable/Field changed.
	BindingChanged EventKind = iota
	// TranslatorsChanged: the listed translators were added, removed or
	// reloaded.
	TranslatorsChanged
	// BindingsReset: bindings were replaced wholesale by Restore.
	BindingsReset
)

// Event describes a registry mutation. Listeners run after the write lock
// is released.
type Event struct {
	Variable    string
	Field       string
	Translators []string
	Kind        EventKind
}

// Listener is notified of registry mutations.
type Listener func(Event)

// Subscribe adds a listener.
func (r *Registry) Subscribe(l Listener) {
	r.listenMu.Lock()
	defer r.listenMu.Unlock()
	r.listeners = append(r.listeners, l)
}

func (r *Registry) notify(ev Event) {
	r.listenMu.Lock()
	ls := make([]Listener, len(r.listeners))
	copy(ls, r.listeners)
	r.listenMu.Unlock()

	for _, l := range ls {
		l(ev)
	}
}
