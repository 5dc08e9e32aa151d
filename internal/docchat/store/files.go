package store

import (
	"os"
	"path/filepath"

	"github.com/kart-io/docchat/pkg/errors"
)

// DiskFileStore 将原始文档保存在本地文件系统。
// 目录布局: <root>/<session_id>/documents/<filename>。
type DiskFileStore struct {
	root string
}

// 确保 DiskFileStore 实现了 FileStore 接口。
var _ FileStore = (*DiskFileStore)(nil)

// NewDiskFileStore 创建 DiskFileStore。
func NewDiskFileStore(root string) *DiskFileStore {
	return &DiskFileStore{root: root}
}

func (s *DiskFileStore) sessionDir(sessionID string) string {
	return filepath.Join(s.root, sessionID, "documents")
}

// Save 保存文件并返回落盘路径。
// 文件名取 base 部分，防止路径穿越。
func (s *DiskFileStore) Save(sessionID, filename string, data []byte) (string, error) {
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.ErrInternal.WithCause(err)
	}

	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.ErrInternal.WithCause(err)
	}
	return path, nil
}

// Path 返回已保存文件的落盘路径，文件不存在时返回 ErrDocumentNotFound。
func (s *DiskFileStore) Path(sessionID, filename string) (string, error) {
	path := filepath.Join(s.sessionDir(sessionID), filepath.Base(filename))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", errors.ErrDocumentNotFound.WithMessagef("file %q not found", filename)
		}
		return "", errors.ErrInternal.WithCause(err)
	}
	return path, nil
}

// Remove 删除单个文件。文件不存在不报错。
func (s *DiskFileStore) Remove(sessionID, filename string) error {
	path := filepath.Join(s.sessionDir(sessionID), filepath.Base(filename))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.ErrInternal.WithCause(err)
	}
	return nil
}

// RemoveSession 删除会话的整个存储目录。
func (s *DiskFileStore) RemoveSession(sessionID string) error {
	if err := os.RemoveAll(filepath.Join(s.root, sessionID)); err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	return nil
}
