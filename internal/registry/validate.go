package registry

import "strings"

// Candidate is a plugin record assembled from CLI arguments, checked before
// it is allowed to touch the store.
type Candidate struct {
	Name           string
	PublicRepo     string
	DockerImage    string
	DescriptorName string
	Descriptor     []byte
	Version        string
}

// Validate checks the candidate's required fields and names the first field
// that is missing or empty.
func (c Candidate) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"name", c.Name},
		{"public_repo", c.PublicRepo},
		{"docker_image", c.DockerImage},
		{"descriptor_name", c.DescriptorName},
		{"version", c.Version},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}
	if len(c.Descriptor) == 0 {
		return &ValidationError{Field: "descriptor_file", Reason: "is required"}
	}
	return nil
}
