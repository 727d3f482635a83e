// Package rtplan reads and writes DICOM RT Ion Plan files and maps them to
// the in-memory plan model.
//
// The dataset read from disk is kept as a template. Encoding rebuilds the
// ion beam and referenced beam sequences from the model, starting from the
// source items, so attributes the model does not know about are preserved.
package rtplan

import (
	"errors"
	"fmt"
	"os"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var (
	// ErrFileNotReadable is returned when the plan file cannot be opened.
	ErrFileNotReadable = errors.New("plan file not readable")

	// ErrMalformedPlan is returned for files that are not usable RT Ion Plans.
	ErrMalformedPlan = errors.New("malformed RT ion plan")
)

// RTIonPlanStorage is the SOP class UID of RT Ion Plan objects.
const RTIonPlanStorage = "1.2.840.10008.5.1.4.1.1.481.8"

// Document is a parsed RT Ion Plan file.
type Document struct {
	Path    string
	Dataset dicom.Dataset
}

// Read parses the plan at path.
func Read(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileNotReadable, err)
	}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPlan, path, err)
	}
	if !has(ds.Elements, tag.IonBeamSequence) {
		return nil, fmt.Errorf("%w: %s has no ion beam sequence", ErrMalformedPlan, path)
	}
	return &Document{Path: path, Dataset: ds}, nil
}

// Write saves the document to path.
func (d *Document) Write(path string, opts ...dicom.WriteOption) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := dicom.Write(f, d.Dataset, opts...); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// SOPClassUID returns the SOP class of the dataset.
func (d *Document) SOPClassUID() string {
	return getString(d.Dataset.Elements, tag.SOPClassUID)
}
