package auth_test

import (
	"context"
	"testing"

	"github.com/inferent/runway/auth"
)

func TestStaticGate(t *testing.T) {
	t.Parallel()
	g := auth.NewStaticGate("k1", "k2")
	ctx := context.Background()

	tests := []struct {
		name       string
		credential string
		want       bool
	}{
		{"known key", "k1", true},
		{"second known key", "k2", true},
		{"unknown key", "nope", false},
		{"empty credential", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := g.Authorize(ctx, tt.credential)
			if err != nil {
				t.Fatalf("Authorize returned error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("Authorize(%q) = %v, want %v", tt.credential, ok, tt.want)
			}
		})
	}
}

func TestStaticGateAdd(t *testing.T) {
	t.Parallel()
	g := auth.NewStaticGate()
	ctx := context.Background()

	if ok, _ := g.Authorize(ctx, "late"); ok {
		t.Fatal("unissued key authorized")
	}
	g.Add("late")
	if ok, _ := g.Authorize(ctx, "late"); !ok {
		t.Fatal("added key not authorized")
	}
}

type fakeKeys struct {
	issued map[string]string
}

func (f *fakeKeys) PutKey(_ context.Context, key, email string) error {
	f.issued[key] = email
	return nil
}

func (f *fakeKeys) HasKey(_ context.Context, key string) (bool, error) {
	_, ok := f.issued[key]
	return ok, nil
}

func TestKeyGate(t *testing.T) {
	t.Parallel()
	keys := &fakeKeys{issued: map[string]string{"issued-key": "a@b.c"}}
	g := auth.NewKeyGate(keys)
	ctx := context.Background()

	if ok, err := g.Authorize(ctx, "issued-key"); err != nil || !ok {
		t.Errorf("Authorize(issued-key) = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := g.Authorize(ctx, "other"); ok {
		t.Error("unissued key authorized")
	}
	if ok, _ := g.Authorize(ctx, ""); ok {
		t.Error("empty credential authorized")
	}
}
