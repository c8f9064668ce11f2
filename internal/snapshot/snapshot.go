// Package snapshot saves a reconciled host to a file and loads it back, so a
// device table can be re-rendered offline.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/sigreer/lsblkpro/internal/model"
)

// Version is the schema version written by this build
const Version = 1

// ErrVersion is returned for documents written with an unknown schema
var ErrVersion = errors.New("unsupported snapshot version")

// Format is an on-disk encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCBOR Format = "cbor"
)

// FormatFor picks the encoding from a file extension; YAML is the default
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbor":
		return FormatCBOR
	}
	return FormatYAML
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// Document is the versioned snapshot schema
type Document struct {
	Version          int       `yaml:"version" cbor:"version"`
	Hostname         string    `yaml:"hostname" cbor:"hostname"`
	TakenAt          time.Time `yaml:"taken_at" cbor:"taken_at"`
	Devices          []Device  `yaml:"devices" cbor:"devices"`
	MissingFromLsblk []string  `yaml:"missing_from_lsblk,omitempty" cbor:"missing_from_lsblk,omitempty"`
	Warnings         []Warning `yaml:"warnings,omitempty" cbor:"warnings,omitempty"`
}

// Entity is the shared record of a device or partition
type Entity struct {
	Name        string            `yaml:"name" cbor:"name"`
	MajMin      string            `yaml:"maj_min" cbor:"maj_min"`
	SizeSectors int64             `yaml:"size_sectors" cbor:"size_sectors"`
	Holders     []string          `yaml:"holders,omitempty" cbor:"holders,omitempty"`
	Lsblk       map[string]string `yaml:"lsblk,omitempty" cbor:"lsblk,omitempty"`
	Aliases     map[string]string `yaml:"aliases,omitempty" cbor:"aliases,omitempty"`
	ZPath       string            `yaml:"zpath,omitempty" cbor:"zpath,omitempty"`
}

// Device is a top-level device with its partitions
type Device struct {
	Entity     `yaml:",inline"`
	Partitions []Entity `yaml:"partitions,omitempty" cbor:"partitions,omitempty"`
}

// Warning mirrors model.Warning
type Warning struct {
	Kind    string `yaml:"kind" cbor:"kind"`
	Subject string `yaml:"subject,omitempty" cbor:"subject,omitempty"`
	Message string `yaml:"message" cbor:"message"`
	Hint    string `yaml:"hint,omitempty" cbor:"hint,omitempty"`
}

// New captures host and the warnings raised while building it
func New(host *model.Host, warnings []model.Warning, hostname string, takenAt time.Time) *Document {
	doc := &Document{
		Version:          Version,
		Hostname:         hostname,
		TakenAt:          takenAt.UTC(),
		MissingFromLsblk: append([]string(nil), host.MissingFromLsblk...),
	}
	for _, d := range host.DeviceList() {
		dev := Device{Entity: entityFrom(&d.Record)}
		for _, p := range d.Partitions {
			dev.Partitions = append(dev.Partitions, entityFrom(&p.Record))
		}
		doc.Devices = append(doc.Devices, dev)
	}
	for _, w := range warnings {
		doc.Warnings = append(doc.Warnings, Warning{
			Kind:    string(w.Kind),
			Subject: w.Subject,
			Message: w.Message,
			Hint:    w.Hint,
		})
	}
	return doc
}

func entityFrom(r *model.Record) Entity {
	return Entity{
		Name:        r.Name,
		MajMin:      r.MajMin.String(),
		SizeSectors: r.SizeSectors,
		Holders:     append([]string(nil), r.Holders...),
		Lsblk:       copyMap(r.Lsblk),
		Aliases:     copyMap(r.Aliases),
		ZPath:       r.ZPath,
	}
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Host rebuilds the model and checks it the same way reconciliation does
func (doc *Document) Host() (*model.Host, []model.Warning, error) {
	if doc.Version != Version {
		return nil, nil, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}

	host := model.NewHost()
	for _, dev := range doc.Devices {
		d := model.NewDevice(dev.Name)
		if err := fillRecord(&d.Record, dev.Entity); err != nil {
			return nil, nil, err
		}
		if _, dup := host.Devices[d.Name]; dup {
			return nil, nil, fmt.Errorf("%w: device %s listed twice", model.ErrDataInconsistent, d.Name)
		}
		host.Devices[d.Name] = d

		for _, pe := range dev.Partitions {
			p := model.NewPartition(pe.Name, d.Name)
			if err := fillRecord(&p.Record, pe); err != nil {
				return nil, nil, err
			}
			if _, dup := host.Partitions[p.Name]; dup {
				return nil, nil, fmt.Errorf("%w: partition %s listed twice", model.ErrDataInconsistent, p.Name)
			}
			host.Partitions[p.Name] = p
			d.Partitions = append(d.Partitions, p)
		}
	}
	host.MissingFromLsblk = append([]string(nil), doc.MissingFromLsblk...)

	if err := host.Validate(); err != nil {
		return nil, nil, err
	}

	var warnings []model.Warning
	for _, w := range doc.Warnings {
		warnings = append(warnings, model.Warning{
			Kind:    model.WarningKind(w.Kind),
			Subject: w.Subject,
			Message: w.Message,
			Hint:    w.Hint,
		})
	}
	return host, warnings, nil
}

func fillRecord(r *model.Record, e Entity) error {
	if _, err := model.SplitName(e.Name); err != nil {
		return err
	}
	mm, err := model.ParseMajMin(e.MajMin)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrDataInconsistent, e.Name, err)
	}
	if v, ok := e.Lsblk["MAJ:MIN"]; ok {
		if err := model.CheckMajMin(e.Name, mm, v); err != nil {
			return err
		}
	}
	r.MajMin = mm
	r.SizeSectors = e.SizeSectors
	r.Holders = append([]string(nil), e.Holders...)
	r.ZPath = e.ZPath
	for k, v := range e.Lsblk {
		r.Lsblk[k] = v
	}
	for k, v := range e.Aliases {
		r.Aliases[k] = v
	}
	return nil
}

// Marshal encodes doc in format
func Marshal(doc *Document, format Format) ([]byte, error) {
	switch format {
	case FormatCBOR:
		return encMode.Marshal(doc)
	case FormatYAML:
		return yaml.Marshal(doc)
	}
	return nil, fmt.Errorf("unknown snapshot format %q", format)
}

// Unmarshal decodes a document and rejects unknown schema versions
func Unmarshal(data []byte, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatCBOR:
		err = decMode.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", format, err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}
	return &doc, nil
}

// Save writes doc to path, choosing the encoding from the extension
func Save(path string, doc *Document) error {
	data, err := Marshal(doc, FormatFor(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads a document written by Save
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Unmarshal(data, FormatFor(path))
}
