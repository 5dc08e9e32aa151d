package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docchat/pkg/errors"
)

func TestDiskFileStoreSaveAndRemove(t *testing.T) {
	fs := NewDiskFileStore(t.TempDir())

	path, err := fs.Save("sess-1", "contract.pdf", []byte("content"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	require.NoError(t, fs.Remove("sess-1", "contract.pdf"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错。
	assert.NoError(t, fs.Remove("sess-1", "contract.pdf"))
}

func TestDiskFileStorePath(t *testing.T) {
	fs := NewDiskFileStore(t.TempDir())

	saved, err := fs.Save("sess-1", "contract.pdf", []byte("content"))
	require.NoError(t, err)

	path, err := fs.Path("sess-1", "contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, saved, path)

	_, err = fs.Path("sess-1", "missing.pdf")
	assert.True(t, errors.ErrDocumentNotFound.Is(err))
}

func TestDiskFileStoreStripsPathTraversal(t *testing.T) {
	root := t.TempDir()
	fs := NewDiskFileStore(root)

	path, err := fs.Save("sess-1", "../../etc/passwd", []byte("x"))
	require.NoError(t, err)

	// 文件必须落在会话目录内。
	assert.Equal(t, filepath.Join(root, "sess-1", "documents", "passwd"), path)
}

func TestDiskFileStoreRemoveSession(t *testing.T) {
	root := t.TempDir()
	fs := NewDiskFileStore(root)

	_, err := fs.Save("sess-1", "a.txt", []byte("a"))
	require.NoError(t, err)
	_, err = fs.Save("sess-1", "b.txt", []byte("b"))
	require.NoError(t, err)

	require.NoError(t, fs.RemoveSession("sess-1"))
	_, err = os.Stat(filepath.Join(root, "sess-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "chat_abc_def_123", CollectionName("abc-def-123"))
	assert.Equal(t, "chat_plain", CollectionName("plain"))
}
