package memory

import (
	"testing"

	"github.com/vovakirdan/babble-server/internal/store"
	"github.com/vovakirdan/babble-server/internal/store/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
