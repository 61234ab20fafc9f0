/*
Copyright 2024 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1alpha1

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Decode parses a YAML or JSON configuration, rejecting unknown fields, then
// defaults and validates it.
func Decode(data []byte) (*SearchConfiguration, error) {
	c := &SearchConfiguration{}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("decoding search configuration: %w", err)
	}
	SetDefaults(c)
	if errs := Validate(c); len(errs) > 0 {
		return nil, fmt.Errorf("invalid search configuration: %w", errs.ToAggregate())
	}
	return c, nil
}

// LoadFile reads and decodes the configuration at path.
func LoadFile(path string) (*SearchConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search configuration: %w", err)
	}
	return Decode(data)
}

// Encode renders c as YAML.
func Encode(c *SearchConfiguration) ([]byte, error) {
	return yaml.Marshal(c)
}
