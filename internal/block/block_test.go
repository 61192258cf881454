package block

import "testing"

type echoBlock struct{}

func (echoBlock) ID() string      { return "test.echo" }
func (echoBlock) Version() string { return "0.1.0" }
func (echoBlock) Run(ctx *Context, inputs Inputs) (Outputs, error) {
	return Outputs{"echo": inputs["value"]}, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(echoBlock{})

	b, err := r.Lookup("test.echo")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	out, err := b.Run(&Context{}, Inputs{"value": 42})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out["echo"] != 42 {
		t.Fatalf("echo = %v, want 42", out["echo"])
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("nope"); err == nil {
		t.Fatalf("expected BLOCK_NOT_FOUND error")
	}
}
