package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	handler, flush, ok := Setup()
	if ok {
		t.Fatal("Setup reported enabled without credentials")
	}
	if handler != nil || flush != nil {
		t.Errorf("handler = %v, flush = %p, want both nil when disabled", handler, flush)
	}
}

func TestSetup_RequiresBothKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "pk-lf-test")
	t.Setenv("LANGFUSE_SECRET_KEY", "")

	if _, _, ok := Setup(); ok {
		t.Fatal("Setup reported enabled with only a public key")
	}
}
