package policy

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// unmarshalStrict decodes YAML and rejects unknown keys so typos in a
// policy file fail loudly instead of silently keeping defaults.
func unmarshalStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
