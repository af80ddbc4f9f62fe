package trained

import (
	"archive/tar"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
)

// Marshaler is fitted model state that can snapshot itself into named
// artifact files.
type Marshaler interface {
	MarshalArtifacts() (map[string][]byte, error)
}

// Unmarshaler restores fitted model state from named artifact files.
type Unmarshaler interface {
	UnmarshalArtifacts(map[string][]byte) error
}

// EncodeModel packs a model snapshot into a printable blob: a tar stream
// with sorted entries and fixed timestamps, gzip-compressed, then
// base64-encoded. The same snapshot always encodes to the same string.
func EncodeModel(m Marshaler) (string, error) {
	artifacts, err := m.MarshalArtifacts()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(artifacts))
	for n := range artifacts {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", err
	}
	tw := tar.NewWriter(gz)
	for _, n := range names {
		data := artifacts[n]
		hdr := &tar.Header{
			Name:    n,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: time.Unix(0, 0).UTC(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return "", err
		}
		if _, err := tw.Write(data); err != nil {
			return "", err
		}
	}
	if err := tw.Close(); err != nil {
		return "", err
	}
	if err := gz.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeModel unpacks a blob produced by EncodeModel into dst.
func DecodeModel(blob string, dst Unmarshaler) error {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return fmt.Errorf("trained: decoding model blob: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("trained: decompressing model blob: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	artifacts := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("trained: reading model archive: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("trained: reading artifact %s: %w", hdr.Name, err)
		}
		artifacts[hdr.Name] = data
	}
	return dst.UnmarshalArtifacts(artifacts)
}

// LoadModel restores the model stored under name into dst. A missing
// entry returns false. A blob that no longer decodes is logged, removed
// from p, and also returns false so the caller refits: a corrupt stored
// blob is a cache miss, never a run failure by itself.
func LoadModel(p Params, name string, dst Unmarshaler, logf func(string, ...any)) bool {
	if p == nil {
		return false
	}
	blob, ok := p.Model(name)
	if !ok {
		return false
	}
	if err := DecodeModel(blob, dst); err != nil {
		if logf != nil {
			logf("could not decode stored model %q, refitting: %v", name, err)
		}
		delete(p, name)
		return false
	}
	return true
}

// SaveModel stores m's snapshot under name in p.
func SaveModel(p Params, name string, m Marshaler) error {
	blob, err := EncodeModel(m)
	if err != nil {
		return err
	}
	p[name] = blob
	return nil
}
