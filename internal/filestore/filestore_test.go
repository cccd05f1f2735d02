package filestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasecover/pkg/platform/sentinel"
)

var pdf = []byte("%PDF-1.7 test document")

func TestChecksum(t *testing.T) {
	sum := Checksum(pdf)
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, Checksum(append([]byte(nil), pdf...)))
	assert.NotEqual(t, sum, Checksum([]byte("other")))
}

func TestObjectKey_DropsTraversal(t *testing.T) {
	key := objectKey("../policies//p1/./actors/a1", Checksum(pdf), "application/pdf")
	assert.True(t, strings.HasPrefix(key, "policies/p1/actors/a1/"))
	assert.True(t, strings.HasSuffix(key, ".pdf"))
	assert.NotContains(t, key, "..")
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	obj, err := m.Put(ctx, "policies/p1", pdf, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(len(pdf)), obj.Size)
	assert.Equal(t, Checksum(pdf), obj.Checksum)

	got, ok := m.Get(obj.Location)
	require.True(t, ok)
	assert.Equal(t, pdf, got)

	require.NoError(t, m.Delete(ctx, obj.Location))
	assert.ErrorIs(t, m.Delete(ctx, obj.Location), sentinel.ErrNotFound)
	assert.Zero(t, m.Len())
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	obj, err := l.Put(ctx, "policies/p1/contracts", pdf, "application/pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Location, "file://policies/p1/contracts/"))

	got, err := l.Open(obj.Location)
	require.NoError(t, err)
	assert.Equal(t, pdf, got)

	require.NoError(t, l.Delete(ctx, obj.Location))
	assert.ErrorIs(t, l.Delete(ctx, obj.Location), sentinel.ErrNotFound)

	_, err = l.Open("file://../../etc/passwd")
	assert.Error(t, err)
	_, err = l.Open("mem://x")
	assert.Error(t, err)
}
