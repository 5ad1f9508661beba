package metadata

import (
	"fmt"
	"path/filepath"
	"strings"

	"dicomsort/internal/record"
)

// Field names with derived semantics.
const (
	FieldImageType         = "ImageType"
	FieldFileExtension     = "FileExtension"
	FieldSeriesDescription = "SeriesDescription"
	FieldPatientAge        = "PatientAge"

	FieldSeriesNumber     = "SeriesNumber"
	FieldInstanceNumber   = "InstanceNumber"
	FieldStudyDate        = "StudyDate"
	FieldPatientBirthDate = "PatientBirthDate"
)

// Image type categories.
const (
	ImageTypePhase   = "Phase"
	ImageType3DRecon = "3DRecon"
	ImageTypePhoenix = "Phoenix"
	ImageTypeMag     = "Mag"
	ImageTypeImage   = "Image"
	ImageTypeUnknown = "Unknown"
)

type imageTypeRule struct {
	name     string
	requires []string
}

// imageTypeRules are evaluated in order; the first rule whose required values
// are all present wins.
var imageTypeRules = []imageTypeRule{
	{name: ImageTypePhase, requires: []string{"P"}},
	{name: ImageType3DRecon, requires: []string{"CSA 3D EDITOR"}},
	{name: ImageTypePhoenix, requires: []string{"CSA REPORT"}},
	{name: ImageTypeMag, requires: []string{"FFE", "M"}},
}

// ClassifyImageType maps a set of raw image-type values to a category name.
func ClassifyImageType(values []string) string {
	present := make(map[string]struct{}, len(values))
	for _, v := range values {
		present[strings.TrimSpace(v)] = struct{}{}
	}
	for _, rule := range imageTypeRules {
		if subset(rule.requires, present) {
			return rule.name
		}
	}
	return ImageTypeImage
}

func subset(required []string, present map[string]struct{}) bool {
	for _, v := range required {
		if _, ok := present[v]; !ok {
			return false
		}
	}
	return true
}

// imageType classifies the record. 3D reconstructions share one ordinal, so
// their instance number is overwritten with the series number.
func (a *Accessor) imageType() (any, error) {
	raw, ok := a.rec.Get(FieldImageType)
	if !ok {
		return ImageTypeUnknown, nil
	}
	category := ClassifyImageType(record.Strings(raw))
	if category == ImageType3DRecon {
		if series, ok := a.rec.Get(FieldSeriesNumber); ok {
			a.rec.Put(FieldInstanceNumber, series)
		}
	}
	return category, nil
}

func (a *Accessor) fileExtension() (any, error) {
	ext := filepath.Ext(a.rec.Path)
	if ext == "" {
		return a.opts.DefaultExtension, nil
	}
	return ext, nil
}

func (a *Accessor) seriesLabel() (any, error) {
	rawNumber, err := a.Raw(FieldSeriesNumber)
	if err != nil {
		return nil, err
	}
	number, ok := record.Int(rawNumber)
	if !ok {
		return nil, fmt.Errorf("%w: non-numeric value %q", notFound(FieldSeriesNumber), record.Format(rawNumber))
	}
	desc, ok := a.rec.Get(FieldSeriesDescription)
	var out string
	switch {
	case !ok:
		out = fmt.Sprintf("Series%04d", number)
	case a.opts.SeriesFirst:
		out = fmt.Sprintf("Series%04d_%s", number, record.Format(desc))
	default:
		out = fmt.Sprintf("%s_Series%04d", record.Format(desc), number)
	}
	return strings.TrimSpace(out), nil
}

func (a *Accessor) patientAge() (any, error) {
	if age, ok := a.rec.Get(FieldPatientAge); ok {
		return record.Format(age), nil
	}
	birth, ok := a.rec.Get(FieldPatientBirthDate)
	if !ok || strings.TrimSpace(record.Format(birth)) == "" {
		return "", nil
	}
	studyRaw, err := a.Raw(FieldStudyDate)
	if err != nil {
		return nil, err
	}
	study, okStudy := record.Int(record.Format(studyRaw))
	born, okBorn := record.Int(record.Format(birth))
	if !okStudy || !okBorn {
		return nil, fmt.Errorf("%w: unparseable dates for %s", notFound(FieldPatientAge), FieldPatientAge)
	}
	return fmt.Sprintf("%03dY", (study-born)/10000), nil
}
