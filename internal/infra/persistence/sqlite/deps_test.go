package sqlite

import (
	"go/build"
	"strings"
	"testing"
)

// TestStoreIsPayloadAgnostic keeps the store free of machinecore packages:
// it persists opaque codec payloads only.
func TestStoreIsPayloadAgnostic(t *testing.T) {
	pkg, err := build.Default.ImportDir(".", 0)
	if err != nil {
		t.Fatalf("import dir: %v", err)
	}
	for _, imp := range pkg.Imports {
		if strings.HasPrefix(imp, "machinecore/") {
			t.Fatalf("unexpected module import %s", imp)
		}
	}
}
