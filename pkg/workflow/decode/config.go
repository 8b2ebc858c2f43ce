/*
Copyright 2026 the DECODE Authors.

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

package decode

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrMissingKey = errors.New("missing configuration key")
)

// ShortenTraining rewrites a training configuration in place so a job
// completes quickly on device.  Keys not edited keep their order and
// comments.
func ShortenTraining(configPath, device string) error {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading training config: %w", err)
	}

	edited, err := EditConfig(content, map[string]any{
		"HyperParameter.epochs":         1,
		"HyperParameter.pseudo_ds_size": 200,
		"Simulation.test_size":          64,
		"Hardware.device":               device,
		"Hardware.device_simulation":    device,
	})
	if err != nil {
		return err
	}

	//nolint:gosec // inputs are not secret
	if err := os.WriteFile(configPath, edited, 0o644); err != nil {
		return fmt.Errorf("writing training config: %w", err)
	}

	return nil
}

// EditConfig sets dotted keys, each of which must already exist.
func EditConfig(content []byte, values map[string]any) ([]byte, error) {
	var document yaml.Node

	if err := yaml.Unmarshal(content, &document); err != nil {
		return nil, fmt.Errorf("decoding training config: %w", err)
	}

	if document.Kind != yaml.DocumentNode || len(document.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMissingKey)
	}

	for key, value := range values {
		node, err := lookup(document.Content[0], key)
		if err != nil {
			return nil, err
		}

		if err := node.Encode(value); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", key, err)
		}
	}

	edited, err := yaml.Marshal(&document)
	if err != nil {
		return nil, fmt.Errorf("encoding training config: %w", err)
	}

	return edited, nil
}

func lookup(node *yaml.Node, key string) (*yaml.Node, error) {
	current := node

	for _, segment := range strings.Split(key, ".") {
		if current.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
		}

		var next *yaml.Node

		for i := 0; i+1 < len(current.Content); i += 2 {
			if current.Content[i].Value == segment {
				next = current.Content[i+1]
				break
			}
		}

		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
		}

		current = next
	}

	return current, nil
}
