package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotefs/remotefs/pkg/fserr"
)

func TestListDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list/docs/reports", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"name": "q1.txt", "is_dir": false, "size": 120},
			{"name": "archive", "is_dir": true, "size": 0}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	entries, err := c.ListDirectory(context.Background(), "docs/reports")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "q1.txt", entries[0].Name)
	assert.False(t, entries[0].IsDir)
	assert.Equal(t, int64(120), entries[0].Size)
	assert.True(t, entries[1].IsDir)
}

func TestListDirectoryRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list/", r.URL.Path)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	entries, err := c.ListDirectory(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListDirectoryNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ListDirectory(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, fserr.IsNotFound(err))
}

func TestListDirectoryMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "a list"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ListDirectory(context.Background(), "docs")
	require.Error(t, err)
	assert.Equal(t, fserr.KindProtocol, fserr.KindOf(err))
}

func TestStat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stat/docs/q1.txt", r.URL.Path)
		w.Write([]byte(`{"name": "q1.txt", "is_dir": false, "size": 120}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	entry, err := c.Stat(context.Background(), "docs/q1.txt")
	require.NoError(t, err)
	assert.Equal(t, "q1.txt", entry.Name)
	assert.Equal(t, int64(120), entry.Size)
}

func TestReadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/docs/q1.txt", r.URL.Path)
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	data, err := c.ReadFile(context.Background(), "docs/q1.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestReadFileRangePartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bytes=6-10", r.Header.Get("Range"))
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("world"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	data, err := c.ReadFileRange(context.Background(), "docs/q1.txt", 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestReadFileRangeFullBodyFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignores the Range header entirely.
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)

	data, err := c.ReadFileRange(context.Background(), "docs/q1.txt", 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	// Offset past the end yields no data, not an error.
	data, err = c.ReadFileRange(context.Background(), "docs/q1.txt", 100, 5)
	require.NoError(t, err)
	assert.Empty(t, data)

	// Range extending past the end is truncated.
	data, err = c.ReadFileRange(context.Background(), "docs/q1.txt", 6, 50)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))
}

func TestRetryOnceOnTransportFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Kill the connection before writing a response.
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	entries, err := c.ListDirectory(context.Background(), "docs")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNoRetryOnHTTPError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ListDirectory(context.Background(), "docs")
	require.Error(t, err)
	assert.Equal(t, fserr.KindProtocol, fserr.KindOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUnreachableServer(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 2*time.Second)
	_, err := c.ListDirectory(context.Background(), "docs")
	require.Error(t, err)
	assert.True(t, fserr.IsUnreachable(err))
	assert.False(t, fserr.IsTimeout(err))
}

func TestTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 100*time.Millisecond)
	_, err := c.ListDirectory(context.Background(), "docs")
	require.Error(t, err)
	assert.True(t, fserr.IsUnreachable(err))
	assert.True(t, fserr.IsTimeout(err))
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, c.Health(context.Background()))
}

func TestPathEscaping(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.EscapedPath()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.ListDirectory(context.Background(), "dir with spaces/sub#dir")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "/list/dir%20with%20spaces/"))
	assert.Contains(t, got, "sub%23dir")
}
