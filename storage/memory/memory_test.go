package memory

import (
	"testing"

	"portal-minigame-server/storage/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, New())
}
