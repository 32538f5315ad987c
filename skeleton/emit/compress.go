package emit

import (
	"bytes"

	"github.com/klauspost/compress/gzip"
	"github.com/swdunlop/skeleton-go/skeleton"
)

// compressStep writes a gzip copy next to every written file that matches the plugin's pattern and threshold.
type compressStep struct{ plugin skeleton.Compression }

func (*compressStep) Name() string        { return `compress` }
func (*compressStep) DependsOn() []string { return []string{`write`, `copy`, `html`} }

func (s *compressStep) Emit(m *Manifest) error {
	for _, file := range append([]*File(nil), m.Files...) {
		if !s.applies(file) {
			continue
		}
		data, err := Gzip(file.Contents)
		if err != nil {
			return err
		}
		err = m.write(m.Put(file.Path+`.gz`, data))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *compressStep) applies(file *File) bool {
	if len(file.Contents) < s.plugin.Threshold {
		return false
	}
	return s.plugin.RegExp == nil || s.plugin.RegExp.MatchString(file.Path)
}

// Gzip compresses data at the best compression level.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = w.Write(data)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
