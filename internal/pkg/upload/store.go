// internal/pkg/upload/store.go
package upload

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tourhub/internal/pkg/apperr"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Store 把上传的图片保存到本地目录，并以 URL 前缀对外暴露
type Store struct {
	root      string
	urlPrefix string
	maxBytes  int64
}

// NewStore 创建图片存储。urlPrefix 例如 "/images"
func NewStore(root, urlPrefix string, maxBytes int64) *Store {
	return &Store{root: root, urlPrefix: strings.TrimRight(urlPrefix, "/"), maxBytes: maxBytes}
}

// Root 返回存储根目录，供静态文件服务使用
func (s *Store) Root() string { return s.root }

// MaxBytes 返回单个文件的大小上限
func (s *Store) MaxBytes() int64 { return s.maxBytes }

// Save 校验并保存图片，返回公开访问路径，例如 /images/tours/<uuid>.jpg
func (s *Store) Save(category string, fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxBytes {
		return "", apperr.Validation("file %q exceeds the %d byte limit", fh.Filename, s.maxBytes)
	}
	src, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(err, "open upload")
	}
	defer src.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "read upload")
	}
	ext, ok := allowedTypes[http.DetectContentType(head[:n])]
	if !ok {
		return "", apperr.Validation("only jpeg, png and gif images are allowed")
	}

	dir := filepath.Join(s.root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create upload dir")
	}
	name := uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", errors.Wrap(err, "create upload file")
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		return "", errors.Wrap(err, "write upload")
	}
	if _, err := io.Copy(dst, io.LimitReader(src, s.maxBytes)); err != nil {
		return "", errors.Wrap(err, "write upload")
	}
	return path.Join(s.urlPrefix, category, name), nil
}

// Remove 删除由 Save 返回的文件。不属于本存储的路径和不存在的文件都被忽略
func (s *Store) Remove(publicPath string) error {
	if publicPath == "" || !strings.HasPrefix(publicPath, s.urlPrefix+"/") {
		return nil
	}
	rel := path.Clean(strings.TrimPrefix(publicPath, s.urlPrefix+"/"))
	if rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove upload")
	}
	return nil
}
