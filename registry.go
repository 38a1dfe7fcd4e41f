package loader

import "strings"

// Kind identifies which catalog a Descriptor belongs to
type Kind int

const (
	// KindInternal is a built-in application
	KindInternal Kind = iota
	// KindSystem is a built-in application listed in the main menu
	KindSystem
	// KindDebug is a built-in debug application
	KindDebug
	// KindExternalAlias is a short name for an image on storage
	KindExternalAlias
	// KindExternalPath is an image addressed directly by storage path
	KindExternalPath
)

// Flags are capability flags of an application
type Flags uint32

const (
	// FlagDefault keeps the device awake while the application runs
	FlagDefault Flags = 0
	// FlagInsomniaSafe lets the device sleep while the application runs
	FlagInsomniaSafe Flags = 1 << 0
)

// Has reports whether all bits of f are set
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// wantsWakeLock reports whether running with these flags requires the wake-lock
func (fl Flags) wantsWakeLock() bool {
	return !fl.Has(FlagInsomniaSafe)
}

// Descriptor describes an installable application. Descriptors are never
// modified after the Registry is built.
type Descriptor struct {
	// Kind is the catalog the descriptor belongs to
	Kind Kind
	// Name is the display and lookup name
	Name string
	// AppID is the stable identifier used for diagnostics
	AppID string
	// Entry is the entry point of a built-in application
	Entry AppFunc
	// StackSize is the stack size hint for the execution context
	StackSize int
	// Flags are the capability flags
	Flags Flags
	// Icon is an optional icon reference
	Icon string
	// Path is the storage path of an external alias
	Path string
}

// LegacyName rewrites historical names starting with Prefix to Canonical
type LegacyName struct {
	Prefix    string
	Canonical string
}

// DefaultLegacyNames is the rewrite table applied before name resolution
var DefaultLegacyNames = []LegacyName{
	{Prefix: "Bad USB", Canonical: "Bad KB"},
}

// Registry holds the build-time application catalogs
type Registry struct {
	// Internal holds built-in applications
	Internal []Descriptor
	// System holds built-in applications shown in the main menu
	System []Descriptor
	// Debug holds built-in debug applications
	Debug []Descriptor
	// External holds aliases for images on storage. A trailing entry named
	// ApplicationsName is reserved for the application browser.
	External []Descriptor
	// Settings holds aliases for settings images on storage
	Settings []Descriptor
	// Legacy is the legacy-name rewrite table
	Legacy []LegacyName
}

// NewRegistry creates an empty Registry with the default legacy table
func NewRegistry() *Registry {
	return &Registry{Legacy: DefaultLegacyNames}
}

// Canonical applies the legacy-name rewrite table to name
func (r *Registry) Canonical(name string) string {
	for _, l := range r.Legacy {
		if strings.HasPrefix(name, l.Prefix) {
			return l.Canonical
		}
	}
	return name
}

// FindBuiltin looks up name by name or stable id in the internal, system and
// debug catalogs, in that order
func (r *Registry) FindBuiltin(name string) (*Descriptor, bool) {
	for _, list := range [][]Descriptor{r.Internal, r.System, r.Debug} {
		for i := range list {
			if list[i].Name == name || list[i].AppID == name {
				return &list[i], true
			}
		}
	}
	return nil, false
}

// FindExternal looks up an alias in the external and settings tables
func (r *Registry) FindExternal(name string) (*Descriptor, bool) {
	for _, list := range [][]Descriptor{r.External, r.Settings} {
		for i := range list {
			if list[i].Name == name {
				return &list[i], true
			}
		}
	}
	return nil, false
}

// findMenuEntry matches a menu file line by exact name
func (r *Registry) findMenuEntry(name string) (*Descriptor, bool) {
	for _, list := range [][]Descriptor{r.System, r.Internal, r.External} {
		for i := range list {
			if list[i].Name == name {
				return &list[i], true
			}
		}
	}
	return nil, false
}

// menuNames returns the names written to a freshly generated menu file:
// system applications, then external aliases without the browser sentinel
func (r *Registry) menuNames() []string {
	names := make([]string, 0, len(r.System)+len(r.External))
	for _, d := range r.System {
		names = append(names, d.Name)
	}
	external := r.External
	if n := len(external); n > 0 && external[n-1].Name == ApplicationsName {
		external = external[:n-1]
	}
	for _, d := range external {
		names = append(names, d.Name)
	}
	return names
}
