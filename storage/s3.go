/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/launix-de/bar/barerr"
)

func init() {
	RegisterBackend("s3", func() Backend { return &S3Backend{} })
}

// S3Backend stores archive objects under bucket/prefix/<name>. S3 has
// no append; writes buffer in memory and PutObject on Close, same
// shape as the teacher's s3WriteCloser.
type S3Backend struct {
	spec   *StorageSpecifier
	bucket string
	prefix string

	mu     sync.Mutex
	client *s3.Client
	lim    *BandwidthLimiter
}

func (s *S3Backend) Init(spec *StorageSpecifier) error {
	s.spec = spec
	parts := strings.SplitN(strings.TrimPrefix(spec.Path, "/"), "/", 2)
	s.bucket = parts[0]
	if len(parts) > 1 {
		s.prefix = parts[1]
	}
	s.lim = NewBandwidthLimiter(Settings.DefaultBandwidthLimit)

	ctx := context.Background()
	var opts []func(*config.LoadOptions) error
	if spec.User != "" && spec.Password != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(spec.User, spec.Password, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return barerr.Wrap(barerr.KindAuthentication, "init", spec.PrintableName(), err)
	}

	var s3Opts []func(*s3.Options)
	if spec.Host != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(spec.Host)
			o.UsePathStyle = true
		})
	}
	s.client = s3.NewFromConfig(cfg, s3Opts...)
	return nil
}

func (s *S3Backend) Done() error { return nil }

func (s *S3Backend) GetName() string          { return "s3://" + s.bucket + "/" + s.prefix }
func (s *S3Backend) GetPrintableName() string { return s.spec.PrintableName() }

func (s *S3Backend) IsServerAllocationPending() bool { return false }

func (s *S3Backend) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Backend) Exists(name string) bool {
	_, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.key(name)),
	})
	return err == nil
}

func (s *S3Backend) IsFile(name string) bool      { return s.Exists(name) }
func (s *S3Backend) IsDirectory(name string) bool { return false } // S3 has no real directories
func (s *S3Backend) IsReadable(name string) bool  { return s.Exists(name) }
func (s *S3Backend) IsWritable(name string) bool  { return true }

func (s *S3Backend) Create(name string, size int64, forceOverwrite bool, mode Mode) (Handle, error) {
	if s.Exists(name) && mode == ModeCreate && !forceOverwrite {
		return nil, barerr.New(barerr.KindResource, "create", name, "file exists")
	}
	return &s3Handle{backend: s, key: s.key(name)}, nil
}

func (s *S3Backend) Open(name string) (Handle, error) {
	resp, err := s.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.key(name)),
	})
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "open", name, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "open", name, err)
	}
	return &s3ReadHandle{data: data}, nil
}

func (s *S3Backend) Delete(name string) error {
	_, err := s.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.key(name)),
	})
	if err != nil {
		return barerr.Wrap(barerr.KindIO, "delete", name, err)
	}
	return nil
}

func (s *S3Backend) Rename(oldName, newName string) error {
	_, err := s.client.CopyObject(context.Background(), &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.key(newName)),
		CopySource: aws.String(s.bucket + "/" + s.key(oldName)),
	})
	if err != nil {
		return barerr.Wrap(barerr.KindIO, "rename", oldName, err)
	}
	return s.Delete(oldName)
}

func (s *S3Backend) MakeDirectory(name string) error {
	return nil // S3 prefixes need no explicit directory object
}

func (s *S3Backend) GetFileInfo(name string) (FileInfo, error) {
	resp, err := s.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(s.key(name)),
	})
	if err != nil {
		return FileInfo{}, barerr.Wrap(barerr.KindIO, "getFileInfo", name, err)
	}
	info := FileInfo{Name: name}
	if resp.ContentLength != nil {
		info.Size = *resp.ContentLength
	}
	if resp.LastModified != nil {
		info.ModificationTime = *resp.LastModified
	}
	return info, nil
}

func (s *S3Backend) OpenDirectoryList(name string) (DirectoryList, error) {
	prefix := s.key(name)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	resp, err := s.client.ListObjectsV2(context.Background(), &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket), Prefix: aws.String(prefix), Delimiter: aws.String("/"),
	})
	if err != nil {
		return nil, barerr.Wrap(barerr.KindIO, "openDirectoryList", name, err)
	}
	list := &s3DirList{backend: s, idx: -1}
	for _, obj := range resp.Contents {
		entry := strings.TrimPrefix(*obj.Key, prefix)
		var size int64
		var modTime time.Time
		if obj.Size != nil {
			size = *obj.Size
		}
		if obj.LastModified != nil {
			modTime = *obj.LastModified
		}
		list.entries = append(list.entries, FileInfo{Name: entry, Size: size, ModificationTime: modTime})
	}
	for _, cp := range resp.CommonPrefixes {
		entry := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
		list.entries = append(list.entries, FileInfo{Name: entry, IsDir: true})
	}
	return list, nil
}

func (s *S3Backend) PreProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}

func (s *S3Backend) PostProcess(template, file, directory string, number int) error {
	return runTemplate(template, file, directory, number)
}

type s3Handle struct {
	backend *S3Backend
	key     string
	buf     bytes.Buffer
	closed  bool
}

func (w *s3Handle) Read(p []byte) (int, error) { return 0, ErrNotSupported("s3", "read-while-writing") }
func (w *s3Handle) Seek(offset int64, whence int) (int64, error) {
	return 0, ErrNotSupported("s3", "seek")
}
func (w *s3Handle) Tell() (int64, error)      { return int64(w.buf.Len()), nil }
func (w *s3Handle) GetSize() (int64, error)   { return int64(w.buf.Len()), nil }

func (w *s3Handle) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := w.buf.Write(p)
	if n > 0 && w.backend.lim != nil {
		w.backend.lim.AccountWrite(int64(n))
	}
	return n, err
}

func (w *s3Handle) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	_, err := w.backend.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(w.backend.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return barerr.Wrap(barerr.KindIO, "close", w.key, err)
	}
	return nil
}

type s3ReadHandle struct {
	data []byte
	pos  int
}

func (r *s3ReadHandle) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func (r *s3ReadHandle) Close() error { return nil }

func (r *s3ReadHandle) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		r.pos = int(offset)
	case io.SeekCurrent:
		r.pos += int(offset)
	case io.SeekEnd:
		r.pos = len(r.data) + int(offset)
	}
	return int64(r.pos), nil
}

func (r *s3ReadHandle) Tell() (int64, error)    { return int64(r.pos), nil }
func (r *s3ReadHandle) GetSize() (int64, error) { return int64(len(r.data)), nil }

type s3DirList struct {
	backend *S3Backend
	entries []FileInfo
	idx     int
}

func (d *s3DirList) Next() bool {
	d.idx++
	return d.idx < len(d.entries)
}

func (d *s3DirList) Entry() (string, FileInfo) {
	e := d.entries[d.idx]
	return e.Name, e
}

func (d *s3DirList) Close() error { return nil }
