package action

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPreservesOrderAndOverwrites(t *testing.T) {
	reg := NewRegistry()
	reg.Register("MyProvider", "transfer", Descriptor{Name: "MyProvider_transfer", Description: "v1"})
	reg.Register("MyProvider", "price", Descriptor{Name: "MyProvider_price"})
	reg.Register("MyProvider", "transfer", Descriptor{Name: "MyProvider_transfer", Description: "v2"})

	entries, ok := reg.Lookup("MyProvider")
	require.True(t, ok)
	require.Len(t, entries, 2)
	require.Equal(t, "transfer", entries[0].Method)
	require.Equal(t, "v2", entries[0].Descriptor.Description)
	require.Equal(t, "price", entries[1].Method)
}

func TestRegistryLookupUnknownOwner(t *testing.T) {
	entries, ok := NewRegistry().Lookup("Nobody")
	require.False(t, ok)
	require.Empty(t, entries)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := fmt.Sprintf("Owner%d", i%2)
			reg.Register(owner, fmt.Sprintf("m%d", i), Descriptor{})
			_, _ = reg.Lookup(owner)
		}(i)
	}
	wg.Wait()

	require.Equal(t, []string{"Owner0", "Owner1"}, reg.Owners())
	a, _ := reg.Lookup("Owner0")
	b, _ := reg.Lookup("Owner1")
	require.Len(t, append(a, b...), 8)
}
