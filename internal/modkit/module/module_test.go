package module

import "testing"

type lookupPort interface{ Lookup(id uint64) string }

type fakeLookup struct{ val string }

func (f fakeLookup) Lookup(uint64) string { return f.val }

type fakeModule struct {
	name  string
	ports any
}

func (m fakeModule) Ports() any   { return m.ports }
func (m fakeModule) Name() string { return m.name }

func TestRegistryRoundTrip(t *testing.T) {
	t.Cleanup(Reset)
	Register("changesets", fakeLookup{val: "x"})

	got, ok := PortsAs[lookupPort]("changesets")
	if !ok {
		t.Fatal("expected registered ports to resolve")
	}
	if got.Lookup(1) != "x" {
		t.Fatalf("lookup = %q, want x", got.Lookup(1))
	}
}

func TestRegistryMissOrWrongType(t *testing.T) {
	t.Cleanup(Reset)
	if _, ok := PortsAs[lookupPort]("nope"); ok {
		t.Fatal("unregistered name should miss")
	}
	Register("changesets", 42)
	if _, ok := PortsAs[lookupPort]("changesets"); ok {
		t.Fatal("wrong concrete type should not assert")
	}
}

func TestPortsOfDirectAndField(t *testing.T) {
	direct := fakeModule{name: "a", ports: fakeLookup{val: "d"}}
	if got, ok := PortsOf[lookupPort](direct); !ok || got.Lookup(0) != "d" {
		t.Fatalf("direct ports not found, ok=%v", ok)
	}

	type bundle struct {
		Lookup lookupPort
		other  int //nolint:unused
	}
	wrapped := fakeModule{name: "b", ports: bundle{Lookup: fakeLookup{val: "f"}}}
	if got, ok := PortsOf[lookupPort](wrapped); !ok || got.Lookup(0) != "f" {
		t.Fatalf("field ports not found, ok=%v", ok)
	}
}

func TestPortsOfMiss(t *testing.T) {
	m := fakeModule{name: "empty", ports: nil}
	if _, ok := PortsOf[lookupPort](m); ok {
		t.Fatal("nil ports should miss")
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("MustPortsOf should panic on miss")
		}
	}()
	MustPortsOf[lookupPort](m)
}
