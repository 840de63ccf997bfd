package model

import "github.com/google/uuid"

// Namespace identifies one axis a flavor label was produced along.
type Namespace string

const (
	NamespaceExternal Namespace = "external"
	NamespaceMime     Namespace = "mime"
	NamespaceYara     Namespace = "yara"
)

// Flavors is a mapping from classifier namespace to the set of labels it
// produced. A set is modeled as map[string]struct{} to make membership
// checks and unioning cheap.
type Flavors map[Namespace]map[string]struct{}

func NewFlavors() Flavors {
	return Flavors{}
}

func (f Flavors) Add(ns Namespace, labels ...string) {
	set, ok := f[ns]
	if !ok {
		set = make(map[string]struct{}, len(labels))
		f[ns] = set
	}
	for _, l := range labels {
		set[l] = struct{}{}
	}
}

func (f Flavors) Has(ns Namespace, label string) bool {
	set, ok := f[ns]
	if !ok {
		return false
	}
	_, ok = set[label]
	return ok
}

// Union returns every label across every namespace, deduplicated.
func (f Flavors) Union() []string {
	seen := make(map[string]struct{})
	for _, set := range f {
		for l := range set {
			seen[l] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	return out
}

// List returns the sorted labels of a single namespace, for deterministic
// event serialization.
func (f Flavors) List(ns Namespace) []string {
	set := f[ns]
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	return out
}

// File is the in-memory descriptor carried through traversal.
type File struct {
	UID     string  // fresh opaque id per node
	Pointer string  // coordinator key suffix for data:{pointer}
	Parent  string  // uid of the parent file, empty for root
	Depth   int     // 0 for root, parent.Depth+1 for children
	Name    string  // optional filename
	Source  string  // optional source label
	Flavors Flavors
}

// RootFile builds the depth-0 descriptor for a freshly popped request.
func RootFile(rootID string) File {
	return File{
		UID:     rootID,
		Pointer: rootID,
		Depth:   0,
		Flavors: NewFlavors(),
	}
}

// NewChildFile mints a child descriptor from a parent and a pointer a
// scanner has already written bytes to in the coordinator. Centralizing
// uid generation here keeps every plugin from reimplementing it.
func NewChildFile(parent File, pointer, name, source string) File {
	return File{
		UID:     uuid.NewString(),
		Pointer: pointer,
		Parent:  parent.UID,
		Depth:   parent.Depth + 1,
		Name:    name,
		Source:  source,
		Flavors: NewFlavors(),
	}
}
