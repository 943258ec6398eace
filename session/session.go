// Package session persists translator bindings between runs.
//
// A session file is YAML:
//
//	version: 1
//	bindings:
//	  tb.cpu.state:
//	    "": Enum
//	  tb.bus:
//	    "": Struct
//	    addr: Hexadecimal
package session

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wave-translate/errors"
	"github.com/wippyai/wave-translate/registry"
)

// Version is the session format written by Save.
const Version = 1

type document struct {
	Bindings registry.Bindings `yaml:"bindings"`
	Version  int               `yaml:"version"`
}

// Read decodes bindings. An empty document yields no bindings.
func Read(r io.Reader) (registry.Bindings, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.ParseFailed(errors.PhaseSession, "session", err)
	}
	if doc.Version > Version {
		return nil, errors.New(errors.PhaseSession, errors.KindUnsupported).
			Detail("session version %d is newer than %d", doc.Version, Version).
			Build()
	}
	if doc.Bindings == nil {
		doc.Bindings = make(registry.Bindings)
	}
	return doc.Bindings, nil
}

// Write encodes bindings.
func Write(w io.Writer, b registry.Bindings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Version: Version, Bindings: b}); err != nil {
		return errors.Wrap(errors.PhaseSession, errors.KindInvalidData, err, "encode session")
	}
	return enc.Close()
}

// Load reads a session file into reg, replacing its bindings. A missing
// file is not an error and leaves reg untouched.
func Load(path string, reg *registry.Registry) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.LoadFailure(path, err)
	}
	defer f.Close()

	b, err := Read(f)
	if err != nil {
		return err
	}
	reg.Restore(b)
	return nil
}

// Save writes the bindings of reg to path, replacing the file atomically.
func Save(path string, reg *registry.Registry) error {
	var buf bytes.Buffer
	if err := Write(&buf, reg.Snapshot()); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*")
	if err != nil {
		return errors.Wrap(errors.PhaseSession, errors.KindLoadFailure, err, "create session file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(errors.PhaseSession, errors.KindLoadFailure, err, "write session file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.PhaseSession, errors.KindLoadFailure, err, "write session file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(errors.PhaseSession, errors.KindLoadFailure, err, "replace session file")
	}
	return nil
}
