// Copyright 2026 The Etaserve Authors <dev@etaserve.io>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package predictor implements the ETA prediction engine: decoding and
// validation of tree-ensemble model artifacts, feature vectorization with
// min-max scaling, ensemble evaluation and the per-mode model manager.
package predictor

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactFormat identifies the model artifact document format
const ArtifactFormat = "etaserve/tree-ensemble"

// ArtifactFormatVersion is the current artifact format version
const ArtifactFormatVersion = 1

const (
	FeatureKindNumeric     = "numeric"
	FeatureKindCategorical = "categorical"
)

// FeatureSpec describes one input feature of a model.
//
// A numeric feature occupies one vector slot and carries the min-max scaling
// bounds saved at training time. A categorical feature occupies one one-hot
// slot per level.
type FeatureSpec struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Min    float64  `json:"min,omitempty"`
	Max    float64  `json:"max,omitempty"`
	Levels []string `json:"levels,omitempty"`
}

// TargetSpec carries the denormalization bounds of the predicted target
type TargetSpec struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Node is one node of a regression tree, either a split or a leaf
type Node struct {
	Leaf        bool    `json:"leaf,omitempty"`
	Value       float64 `json:"value,omitempty"`
	Feature     int     `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Left        int     `json:"left,omitempty"`
	Right       int     `json:"right,omitempty"`
	DefaultLeft bool    `json:"default_left,omitempty"`
}

// Tree is one regression tree of the ensemble, node 0 is the root
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Artifact is the decoded form of a stored model version
type Artifact struct {
	Format        string        `json:"format"`
	FormatVersion int           `json:"format_version"`
	Mode          Mode          `json:"mode"`
	TrainedAt     time.Time     `json:"trained_at,omitempty"`
	Target        TargetSpec    `json:"target"`
	Features      []FeatureSpec `json:"features"`
	BaseScore     float64       `json:"base_score"`
	Trees         []Tree        `json:"trees"`
}

// DecodeArtifact decodes and validates a model artifact document
func DecodeArtifact(data []byte) (*Artifact, error) {
	artifact := &Artifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, fmt.Errorf("unable to decode model artifact: %w", err)
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return artifact, nil
}

// Encode serializes the artifact to its canonical JSON document
func (a *Artifact) Encode() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// NumSlots returns the size of the feature vector: one slot per numeric
// feature, one slot per level of each categorical feature.
func (a *Artifact) NumSlots() int {
	slots := 0
	for _, feature := range a.Features {
		if feature.Kind == FeatureKindCategorical {
			slots += len(feature.Levels)
		} else {
			slots++
		}
	}
	return slots
}

// Validate checks the structural invariants of the artifact
func (a *Artifact) Validate() error {
	if a.Format != ArtifactFormat {
		return fmt.Errorf("invalid artifact format %q, expected %q", a.Format, ArtifactFormat)
	}
	if a.FormatVersion != ArtifactFormatVersion {
		return fmt.Errorf("unsupported artifact format version %d, expected %d", a.FormatVersion, ArtifactFormatVersion)
	}
	if _, err := ParseMode(string(a.Mode)); err != nil {
		return err
	}
	if a.Target.Min >= a.Target.Max {
		return fmt.Errorf(
			"invalid target %q scaling bounds, min (%f) must be lower than max (%f)",
			a.Target.Name, a.Target.Min, a.Target.Max,
		)
	}
	if len(a.Features) == 0 {
		return fmt.Errorf("artifact declares no features")
	}
	featureNames := map[string]bool{}
	for _, feature := range a.Features {
		if featureNames[feature.Name] {
			return fmt.Errorf("duplicated feature %q", feature.Name)
		}
		featureNames[feature.Name] = true
		switch feature.Kind {
		case FeatureKindNumeric:
			if feature.Min > feature.Max {
				return fmt.Errorf(
					"invalid feature %q scaling bounds, min (%f) is greater than max (%f)",
					feature.Name, feature.Min, feature.Max,
				)
			}
		case FeatureKindCategorical:
			if len(feature.Levels) == 0 {
				return fmt.Errorf("categorical feature %q declares no levels", feature.Name)
			}
		default:
			return fmt.Errorf("invalid kind %q for feature %q", feature.Kind, feature.Name)
		}
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("artifact declares no trees")
	}
	numSlots := a.NumSlots()
	for treeIdx, tree := range a.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", treeIdx)
		}
		for nodeIdx, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature < 0 || node.Feature >= numSlots {
				return fmt.Errorf(
					"tree %d node %d references vector slot %d, expected [0,%d)",
					treeIdx, nodeIdx, node.Feature, numSlots,
				)
			}
			for _, child := range []int{node.Left, node.Right} {
				if child <= nodeIdx || child >= len(tree.Nodes) {
					return fmt.Errorf(
						"tree %d node %d references child %d, children must point forward within the tree",
						treeIdx, nodeIdx, child,
					)
				}
			}
		}
	}
	return nil
}
