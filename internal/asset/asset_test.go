package asset

import "testing"

func TestNewAppliesDefaultRegion(t *testing.T) {
	a := New("gedi", "", "", "data")
	if a.Region() != DefaultRegion {
		t.Errorf("region = %q, want %q", a.Region(), DefaultRegion)
	}
	if a.Name() != "gedi" || a.Path() != "data" || a.Endpoint() != "" {
		t.Errorf("fields = %q %q %q", a.Name(), a.Path(), a.Endpoint())
	}
}

func TestDirectoryAddLookup(t *testing.T) {
	d := NewDirectory()
	if got := d.Lookup("missing"); got != nil {
		t.Errorf("Lookup(missing) = %v, want nil", got)
	}

	d.Add(New("gedi", "us-west-2", "", "data"))
	a := d.Lookup("gedi")
	if a == nil || a.Region() != "us-west-2" {
		t.Fatalf("Lookup(gedi) = %v", a)
	}

	// Re-adding replaces.
	d.Add(New("gedi", "eu-central-1", "", "data2"))
	if got := d.Lookup("gedi").Region(); got != "eu-central-1" {
		t.Errorf("region after replace = %q", got)
	}

	if names := d.Names(); len(names) != 1 || names[0] != "gedi" {
		t.Errorf("Names() = %v", names)
	}
}
