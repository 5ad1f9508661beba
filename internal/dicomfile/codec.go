// Package dicomfile reads and writes DICOM files through
// github.com/suyashkumar/dicom, exposing their elements as records keyed by
// the standard element keyword.
package dicomfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomsort/internal/failure"
	"dicomsort/internal/record"
)

// Codec decodes files into records and encodes modified records back into
// DICOM. The zero value is ready to use and safe for concurrent use.
type Codec struct{}

// New returns a Codec.
func New() *Codec {
	return &Codec{}
}

// KnownField reports whether name is a standard DICOM element keyword.
func KnownField(name string) bool {
	_, err := tag.FindByName(name)
	return err == nil
}

// Decode parses the file at path. Files the parser rejects are reported as
// failure.ErrNotRecognized.
func (c *Codec) Decode(ctx context.Context, path string) (rec *record.Record, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("%w: %s: parser panic: %v", failure.ErrNotRecognized, path, r)
		}
	}()
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", failure.ErrNotRecognized, path, err)
	}
	return datasetRecord(path, &ds), nil
}

// datasetRecord exposes every element with a known keyword and a scalar value
// type. Pixel data, sequences and raw bytes stay in the dataset only.
func datasetRecord(path string, ds *dicom.Dataset) *record.Record {
	rec := record.New(path)
	rec.SetHandle(ds)
	for _, elem := range ds.Elements {
		if elem == nil || elem.Value == nil {
			continue
		}
		info, err := tag.Find(elem.Tag)
		if err != nil || info.Name == "" {
			continue
		}
		if value, ok := elementValue(elem); ok {
			rec.Add(info.Name, value)
		}
	}
	return rec
}

func elementValue(elem *dicom.Element) (any, bool) {
	switch elem.Value.ValueType() {
	case dicom.Strings:
		vals, _ := elem.Value.GetValue().([]string)
		if len(vals) == 1 {
			return vals[0], true
		}
		return append([]string(nil), vals...), true
	case dicom.Ints:
		vals, _ := elem.Value.GetValue().([]int)
		if len(vals) == 1 {
			return vals[0], true
		}
		return append([]int(nil), vals...), true
	case dicom.Floats:
		vals, _ := elem.Value.GetValue().([]float64)
		if len(vals) == 1 {
			return vals[0], true
		}
		return append([]float64(nil), vals...), true
	default:
		return nil, false
	}
}

// Encode writes the record's dataset to w after applying every modified
// field. Records not produced by Decode cannot be encoded.
func (c *Codec) Encode(w io.Writer, rec *record.Record) error {
	ds, ok := rec.Handle().(*dicom.Dataset)
	if !ok || ds == nil {
		return fmt.Errorf("%w: %s: record has no DICOM dataset", failure.ErrPersistence, rec.Path)
	}
	if err := applyModified(ds, rec); err != nil {
		return err
	}
	if err := dicom.Write(w, *ds, dicom.SkipVRVerification(), dicom.SkipValueTypeVerification()); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

func applyModified(ds *dicom.Dataset, rec *record.Record) error {
	for _, name := range rec.Modified() {
		raw, _ := rec.Get(name)
		info, err := tag.FindByName(name)
		if err != nil {
			return fmt.Errorf("%w: unknown DICOM keyword %q", failure.ErrPersistence, name)
		}
		existing, err := ds.FindElementByTag(info.Tag)
		if err != nil && !errors.Is(err, dicom.ErrorElementNotFound) {
			return fmt.Errorf("find %s: %w", name, err)
		}
		if existing != nil && existing.Value != nil {
			data, err := convert(raw, existing.Value.ValueType())
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			value, err := dicom.NewValue(data)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			existing.Value = value
			continue
		}
		// Fields absent from the dataset are added as text; the writer derives
		// the VR from the tag dictionary.
		data, err := convert(raw, dicom.Strings)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		elem, err := dicom.NewElement(info.Tag, data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		ds.Elements = append(ds.Elements, elem)
	}
	return nil
}

func convert(raw any, vt dicom.ValueType) (any, error) {
	parts := record.Strings(raw)
	switch vt {
	case dicom.Ints:
		out := make([]int, 0, len(parts))
		for _, p := range parts {
			n, ok := record.Int(p)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not an integer", failure.ErrPersistence, p)
			}
			out = append(out, n)
		}
		return out, nil
	case dicom.Floats:
		out := make([]float64, 0, len(parts))
		for _, p := range parts {
			f, ok := record.Float(p)
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a number", failure.ErrPersistence, p)
			}
			out = append(out, f)
		}
		return out, nil
	case dicom.Strings:
		if parts == nil {
			parts = []string{}
		}
		return parts, nil
	default:
		return nil, fmt.Errorf("%w: cannot rewrite value type %v", failure.ErrPersistence, vt)
	}
}
