package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootNode(t *testing.T) {
	r := New()

	root, ok := r.ByID(RootID)
	require.True(t, ok)
	assert.Equal(t, "", root.Path)
	assert.True(t, root.IsDir)

	byPath, ok := r.ByPath("")
	require.True(t, ok)
	assert.Equal(t, RootID, byPath.ID)
}

func TestUpsertAssignsMonotonicIDs(t *testing.T) {
	r := New()

	a := r.Upsert("a", true, 0, time.Time{})
	b := r.Upsert("a/b.txt", false, 42, time.Time{})

	assert.Equal(t, RootID+1, a.ID)
	assert.Equal(t, RootID+2, b.ID)
}

func TestUpsertKeepsIDOnRefresh(t *testing.T) {
	r := New()

	first := r.Upsert("a/b.txt", false, 42, time.Time{})
	second := r.Upsert("a/b.txt", false, 100, time.Time{})

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(100), second.Size)

	n, ok := r.ByID(first.ID)
	require.True(t, ok)
	assert.Equal(t, int64(100), n.Size)
}

func TestChildPath(t *testing.T) {
	assert.Equal(t, "file.txt", ChildPath("", "file.txt"))
	assert.Equal(t, "a/b", ChildPath("a", "b"))
	assert.Equal(t, "a/b/c", ChildPath("a/b", "c"))
}

func TestRemoveSubtree(t *testing.T) {
	r := New()

	r.Upsert("a", true, 0, time.Time{})
	r.Upsert("a/b", true, 0, time.Time{})
	r.Upsert("a/b/c.txt", false, 1, time.Time{})
	r.Upsert("ab", true, 0, time.Time{})
	other := r.Upsert("ab/d.txt", false, 1, time.Time{})

	removed := r.Remove("a")
	assert.Len(t, removed, 3)

	_, ok := r.ByPath("a")
	assert.False(t, ok)
	_, ok = r.ByPath("a/b/c.txt")
	assert.False(t, ok)

	// A sibling sharing the name prefix is untouched.
	n, ok := r.ByPath("ab/d.txt")
	require.True(t, ok)
	assert.Equal(t, other.ID, n.ID)
}

func TestRemovedIDsAreNotRecycled(t *testing.T) {
	r := New()

	gone := r.Upsert("a", true, 0, time.Time{})
	r.Remove("a")
	fresh := r.Upsert("a", true, 0, time.Time{})

	assert.Greater(t, fresh.ID, gone.ID)
}

func TestRemoveRootIsNoop(t *testing.T) {
	r := New()
	assert.Nil(t, r.Remove(""))

	_, ok := r.ByID(RootID)
	assert.True(t, ok)
}

func TestConcurrentUpsert(t *testing.T) {
	r := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				r.Upsert(fmt.Sprintf("dir%d/file%d", i, j), false, int64(j), time.Time{})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1+16*50, r.Len())

	seen := make(map[uint64]bool)
	for i := 0; i < 16; i++ {
		for j := 0; j < 50; j++ {
			n, ok := r.ByPath(fmt.Sprintf("dir%d/file%d", i, j))
			require.True(t, ok)
			assert.False(t, seen[n.ID], "duplicate inode ID")
			seen[n.ID] = true
		}
	}
}
