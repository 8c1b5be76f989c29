package storage

import (
	"testing"

	"machinecore/testutil"
)

func TestImportGuard(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InternalImportForbidden, testutil.LockingImportForbidden, testutil.BackendImportForbidden),
		"storage is a single-threaded library without I/O")
}
