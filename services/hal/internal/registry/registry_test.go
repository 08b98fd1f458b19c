package registry

import "testing"

type dummyBuilder struct{}

func (dummyBuilder) Build(in BuildInput) (BuildOutput, error) {
	return BuildOutput{BusID: in.BusRefID}, nil
}

func TestRegisterAndLookup(t *testing.T) {
	const typ = "test_dummy_builder"
	if _, ok := Lookup(typ); ok {
		t.Skip("builder already registered by earlier test run")
	}
	RegisterBuilder(typ, dummyBuilder{})
	b, ok := Lookup(typ)
	if !ok {
		t.Fatalf("lookup failed for %q", typ)
	}
	out, _ := b.Build(BuildInput{BusRefID: "i2c1"})
	if out.BusID != "i2c1" {
		t.Fatalf("unexpected build output %+v", out)
	}
	found := false
	for _, n := range Types() {
		found = found || n == typ
	}
	if !found {
		t.Fatalf("Types() misses %q", typ)
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	const typ = "test_duplicate_builder"
	if _, ok := Lookup(typ); !ok {
		RegisterBuilder(typ, dummyBuilder{})
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	RegisterBuilder(typ, dummyBuilder{})
}
