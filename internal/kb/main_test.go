package kb

import (
	"testing"

	"go.uber.org/goleak"
)

// The indexer runs per-file pipelines on a bounded worker pool; every test
// in this package must leave no goroutine behind.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
