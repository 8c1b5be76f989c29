package machine

import (
	"testing"

	"machinecore/testutil"
)

func TestImportGuard(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.AnyOf(testutil.InternalImportForbidden, testutil.LockingImportForbidden, testutil.BackendImportForbidden),
		"machine is a single-threaded library without I/O")
}
