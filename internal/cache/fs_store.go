package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// fsDriver 的磁盘布局：
//
//	<StoragePath>/<site>/index.json                 # Bucket 名称（按创建顺序）
//	<StoragePath>/<site>/buckets/<bucket>/<key>.entry
//
// 条目通过临时文件 + rename 写入，保证读方永远看到完整条目。
type fsDriver struct {
	basePath string
}

const (
	entrySuffix = ".entry"
	tempPrefix  = ".cache-"
	indexFile   = "index.json"
	bucketsDir  = "buckets"
	dirPerm     = 0o755
	filePerm    = 0o644
)

func newFSDriver(basePath string) (*fsDriver, error) {
	if err := os.MkdirAll(basePath, dirPerm); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}
	return &fsDriver{basePath: basePath}, nil
}

func (d *fsDriver) buckets(part string) ([]string, error) {
	data, err := os.ReadFile(d.indexPath(part))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decode bucket index: %w", err)
	}
	return names, nil
}

func (d *fsDriver) hasBucket(part, name string) (bool, error) {
	names, err := d.buckets(part)
	if err != nil {
		return false, err
	}
	return containsName(names, name), nil
}

func (d *fsDriver) createBucket(part, name string) error {
	names, err := d.buckets(part)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.bucketPath(part, name), dirPerm); err != nil {
		return err
	}
	if containsName(names, name) {
		return nil
	}
	return d.writeIndex(part, append(names, name))
}

func (d *fsDriver) dropBucket(part, name string) (bool, error) {
	names, err := d.buckets(part)
	if err != nil {
		return false, err
	}
	if !containsName(names, name) {
		return false, nil
	}
	kept := make([]string, 0, len(names)-1)
	for _, existing := range names {
		if existing != name {
			kept = append(kept, existing)
		}
	}
	if err := d.writeIndex(part, kept); err != nil {
		return false, err
	}
	if err := os.RemoveAll(d.bucketPath(part, name)); err != nil {
		return true, err
	}
	return true, nil
}

func (d *fsDriver) get(part, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(d.entryPath(part, bucket, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (d *fsDriver) put(part, bucket, key string, value []byte) error {
	return writeAtomic(d.entryPath(part, bucket, key), value)
}

func (d *fsDriver) del(part, bucket, key string) (bool, error) {
	err := os.Remove(d.entryPath(part, bucket, key))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (d *fsDriver) values(part, bucket string) ([][]byte, error) {
	dir := d.bucketPath(part, bucket)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([][]byte, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (d *fsDriver) close() error {
	return nil
}

func (d *fsDriver) writeIndex(part string, names []string) error {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return writeAtomic(d.indexPath(part), data)
}

func (d *fsDriver) indexPath(part string) string {
	return filepath.Join(d.basePath, part, indexFile)
}

func (d *fsDriver) bucketPath(part, bucket string) string {
	return filepath.Join(d.basePath, part, bucketsDir, bucket)
}

func (d *fsDriver) entryPath(part, bucket, key string) string {
	return filepath.Join(d.bucketPath(part, bucket), key+entrySuffix)
}

// writeAtomic 先写同目录临时文件再 rename，失败时清理临时文件。
func writeAtomic(filePath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(filePath), dirPerm); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(filepath.Dir(filePath), tempPrefix+"*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tempName, filePerm)
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, existing := range names {
		if existing == name {
			return true
		}
	}
	return false
}
