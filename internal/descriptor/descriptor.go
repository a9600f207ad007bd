package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrMalformedDescriptor reports descriptor content that is not a JSON object.
	ErrMalformedDescriptor = errors.New("descriptor is not a valid json object")
	// ErrMissingVersion reports a descriptor without a usable top-level version field.
	ErrMissingVersion = errors.New("descriptor has no version field")
)

// Blob is a named descriptor payload ready for persistence.
type Blob struct {
	Name string
	Data []byte
}

// Resolve produces the descriptor blob for a plugin from exactly one of a
// file path or an inline JSON string, and extracts the declared version.
// An inline descriptor is re-serialized and named <pluginName>.json; a file
// descriptor keeps the file's bytes and is named by its path.
func Resolve(pluginName, filePath, inline string) (Blob, string, error) {
	switch {
	case filePath != "" && inline != "":
		return Blob{}, "", errors.New("descriptor file and descriptor string are mutually exclusive")
	case filePath == "" && inline == "":
		return Blob{}, "", errors.New("either a descriptor file or a descriptor string is required")
	}

	var blob Blob
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return Blob{}, "", fmt.Errorf("read descriptor file: %w", err)
		}
		blob = Blob{Name: filePath, Data: data}
	} else {
		var repr map[string]any
		if err := json.Unmarshal([]byte(inline), &repr); err != nil {
			return Blob{}, "", fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
		}
		data, err := json.Marshal(repr)
		if err != nil {
			return Blob{}, "", err
		}
		blob = Blob{Name: pluginName + ".json", Data: data}
	}

	version, err := versionFrom(blob.Data)
	if err != nil {
		return Blob{}, "", err
	}
	return blob, version, nil
}

// versionFrom parses the blob content and returns its top-level version.
func versionFrom(data []byte) (string, error) {
	var repr map[string]any
	if err := json.Unmarshal(data, &repr); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}

	version, ok := repr["version"].(string)
	if !ok || version == "" {
		return "", ErrMissingVersion
	}
	return version, nil
}
