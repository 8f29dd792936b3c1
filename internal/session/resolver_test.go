package session

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTestImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveReferences_NilSession(t *testing.T) {
	got, err := ResolveReferences(nil, []string{"a.png", "b.png"})
	if err != nil {
		t.Fatalf("ResolveReferences() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a.png", "b.png"}) {
		t.Errorf("ResolveReferences() = %v", got)
	}
}

func TestResolveReferences_EmptySession(t *testing.T) {
	got, err := ResolveReferences(NewSession("fresh"), []string{"a.png"})
	if err != nil {
		t.Fatalf("ResolveReferences() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"a.png"}) {
		t.Errorf("ResolveReferences() = %v", got)
	}
}

func TestResolveReferences_SessionOnly(t *testing.T) {
	last := writeTestImage(t, "last.png")
	sess := NewSession("solo")
	sess.Turns = []Turn{{ImagePath: last}}

	got, err := ResolveReferences(sess, nil)
	if err != nil {
		t.Fatalf("ResolveReferences() error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{last}) {
		t.Errorf("ResolveReferences() = %v, want [%s]", got, last)
	}
}

func TestResolveReferences_SessionImageFirst(t *testing.T) {
	last := writeTestImage(t, "last.png")
	sess := NewSession("layered")
	sess.Turns = []Turn{
		{ImagePath: "/gone/earlier.png"},
		{ImagePath: last},
	}

	got, err := ResolveReferences(sess, []string{"a.png", "b.png"})
	if err != nil {
		t.Fatalf("ResolveReferences() error = %v", err)
	}
	want := []string{last, "a.png", "b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveReferences() = %v, want %v", got, want)
	}
}

func TestResolveReferences_MissingImage(t *testing.T) {
	sess := NewSession("corrupt")
	sess.Turns = []Turn{{ImagePath: filepath.Join(t.TempDir(), "vanished.png")}}

	_, err := ResolveReferences(sess, nil)
	if !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("ResolveReferences() error = %v, want ErrSessionCorrupt", err)
	}
}
