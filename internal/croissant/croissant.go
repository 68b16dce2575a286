// Package croissant emits an ML Commons Croissant 1.0 dataset description
// referencing the pair manifest. The mapping is mechanical: one FileObject
// for the manifest CSV and one RecordSet whose fields each extract a manifest
// column.
package croissant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ConformsTo is the Croissant specification version this package emits.
const ConformsTo = "http://mlcommons.org/croissant/1.0"

// Document is a Croissant 1.0 JSON-LD dataset description.
type Document struct {
	Context       map[string]any `json:"@context"`
	Type          string         `json:"@type"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	ConformsTo    string         `json:"conformsTo"`
	CiteAs        string         `json:"citeAs,omitempty"`
	DatePublished string         `json:"datePublished,omitempty"`
	License       string         `json:"license,omitempty"`
	URL           string         `json:"url,omitempty"`
	Version       string         `json:"version,omitempty"`
	Distribution  []FileObject   `json:"distribution"`
	RecordSets    []RecordSet    `json:"recordSet"`
}

// FileObject describes one distributed resource.
type FileObject struct {
	Type           string `json:"@type"`
	ID             string `json:"@id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ContentURL     string `json:"contentUrl"`
	EncodingFormat string `json:"encodingFormat"`
	SHA256         string `json:"sha256,omitempty"`
}

// RecordSet describes one set of structured records.
type RecordSet struct {
	Type        string  `json:"@type"`
	ID          string  `json:"@id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"field"`
}

// Field describes one record field and where its values come from.
type Field struct {
	Type        string `json:"@type"`
	ID          string `json:"@id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DataType    string `json:"dataType"`
	Source      Source `json:"source"`
}

// Source ties a field to a column of a distributed file.
type Source struct {
	FileObject Ref     `json:"fileObject"`
	Extract    Extract `json:"extract"`
}

// Ref is a JSON-LD reference by id.
type Ref struct {
	ID string `json:"@id"`
}

// Extract names the column a field's values are read from.
type Extract struct {
	Column string `json:"column"`
}

// Croissant/schema.org data types.
const (
	dataTypeText = "sc:Text"
	dataTypeURL  = "sc:URL"
)

// Params carries the dataset-level metadata for the generated document.
type Params struct {
	Name          string
	Description   string
	CiteAs        string
	DatePublished string
	License       string
	URL           string
	Version       string
}

// DefaultParams describes the EDRN breast density collection.
func DefaultParams() Params {
	return Params{
		Name: "EDRN_Breast_Density_Collection_2",
		Description: "Automated Quantitative Measures of Breast Density Data - " +
			"processed mammograms and segmentation masks streamed from " +
			"LabCAS via authenticated URLs.",
		CiteAs:        "EDRN LabCAS Breast Density Collection",
		DatePublished: "2025-01-22",
		License:       "https://creativecommons.org/licenses/by/4.0/",
		URL:           "https://edrn-labcas.jpl.nasa.gov/collections/Automated_Quantitative_Measures_of_Breast_Density_Data",
		Version:       "1.0.0",
	}
}

// manifestFields maps each manifest column to its record field description.
var manifestFields = []struct {
	column      string
	description string
	dataType    string
}{
	{"group", "Case/control status: 'case' or 'control'.", dataTypeText},
	{"patient_id", "Patient identifier (e.g. C0250, N0500).", dataTypeText},
	{"view", "Mammographic view: LCC, LMLO, RCC, or RMLO.", dataTypeText},
	{"proc_url", "Download URL for the processed mammogram DICOM.", dataTypeURL},
	{"mask_url", "Download URL for the segmentation mask DICOM.", dataTypeURL},
	{"proc_name", "Filename of the processed mammogram.", dataTypeText},
	{"mask_name", "Filename of the segmentation mask.", dataTypeText},
}

// Generate builds the Croissant document for the manifest at manifestPath,
// hashing the file so consumers can verify the referenced copy.
func Generate(manifestPath string, params Params) (*Document, error) {
	sha, err := SHA256File(manifestPath)
	if err != nil {
		return nil, err
	}

	manifestName := filepath.Base(manifestPath)
	recordSetID := "mammograms"

	fields := make([]Field, 0, len(manifestFields))
	for _, mf := range manifestFields {
		fields = append(fields, Field{
			Type:        "cr:Field",
			ID:          recordSetID + "/" + mf.column,
			Name:        recordSetID + "/" + mf.column,
			Description: mf.description,
			DataType:    mf.dataType,
			Source: Source{
				FileObject: Ref{ID: manifestName},
				Extract:    Extract{Column: mf.column},
			},
		})
	}

	return &Document{
		Context:       contextV1(),
		Type:          "sc:Dataset",
		Name:          params.Name,
		Description:   params.Description,
		ConformsTo:    ConformsTo,
		CiteAs:        params.CiteAs,
		DatePublished: params.DatePublished,
		License:       params.License,
		URL:           params.URL,
		Version:       params.Version,
		Distribution: []FileObject{
			{
				Type:           "cr:FileObject",
				ID:             manifestName,
				Name:           manifestName,
				Description:    "CSV manifest of matched PROC/MASK mammogram pairs with download URLs.",
				ContentURL:     manifestName,
				EncodingFormat: "text/csv",
				SHA256:         sha,
			},
		},
		RecordSets: []RecordSet{
			{
				Type:        "cr:RecordSet",
				ID:          recordSetID,
				Name:        recordSetID,
				Description: "Each record is a matched PROC/MASK pair for one patient-view combination.",
				Fields:      fields,
			},
		},
	}, nil
}

// SHA256File streams a file through sha256 and returns the hex digest.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// contextV1 is the standard Croissant 1.0 JSON-LD context.
func contextV1() map[string]any {
	return map[string]any{
		"@language":     "en",
		"@vocab":        "https://schema.org/",
		"citeAs":        "cr:citeAs",
		"column":        "cr:column",
		"conformsTo":    "dct:conformsTo",
		"cr":            "http://mlcommons.org/croissant/",
		"data":          map[string]any{"@id": "cr:data", "@type": "@json"},
		"dataType":      map[string]any{"@id": "cr:dataType", "@type": "@vocab"},
		"dct":           "http://purl.org/dc/terms/",
		"extract":       "cr:extract",
		"field":         "cr:field",
		"fileObject":    "cr:fileObject",
		"fileProperty":  "cr:fileProperty",
		"fileSet":       "cr:fileSet",
		"format":        "cr:format",
		"includes":      "cr:includes",
		"isLiveDataset": "cr:isLiveDataset",
		"jsonPath":      "cr:jsonPath",
		"key":           "cr:key",
		"md5":           "cr:md5",
		"parentField":   "cr:parentField",
		"path":          "cr:path",
		"recordSet":     "cr:recordSet",
		"references":    "cr:references",
		"regex":         "cr:regex",
		"repeated":      "cr:repeated",
		"replace":       "cr:replace",
		"sc":            "https://schema.org/",
		"separator":     "cr:separator",
		"source":        "cr:source",
		"subField":      "cr:subField",
		"transform":     "cr:transform",
	}
}
