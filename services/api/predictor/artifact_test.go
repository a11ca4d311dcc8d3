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

package predictor

import (
	"testing"
	"time"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeValidArtifact() *Artifact {
	return &Artifact{
		Format:        ArtifactFormat,
		FormatVersion: ArtifactFormatVersion,
		Mode:          ModePickup,
		TrainedAt:     time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Target:        TargetSpec{Name: "eta_minutes", Min: 4, Max: 138},
		Features: []FeatureSpec{
			{Name: "pickup_distance_km", Kind: FeatureKindNumeric, Min: 0, Max: 30},
			{Name: "hour_bucket", Kind: FeatureKindCategorical, Levels: []string{"Morning", "Afternoon", "Evening"}},
		},
		BaseScore: 0.5,
		Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: 0.25, Left: 1, Right: 2, DefaultLeft: true},
			{Leaf: true, Value: -0.125},
			{Leaf: true, Value: 0.25},
		}}},
	}
}

func TestDecodeArtifact(t *testing.T) {
	encoded, err := makeValidArtifact().Encode()
	require.NoError(t, err)

	artifact, err := DecodeArtifact(encoded)
	require.NoError(t, err)
	assert.Equal(t, ModePickup, artifact.Mode)
	assert.Equal(t, 2, len(artifact.Features))
	assert.Equal(t, 4, artifact.NumSlots())
}

func TestDecodeArtifactInvalidJSON(t *testing.T) {
	_, err := DecodeArtifact([]byte(`{"format":`))
	assert.Error(t, err)
}

func TestArtifactEncode(t *testing.T) {
	encoded, err := makeValidArtifact().Encode()
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(encoded))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{
			name:   "BadFormat",
			mutate: func(a *Artifact) { a.Format = "etaserve/linear" },
		},
		{
			name:   "BadFormatVersion",
			mutate: func(a *Artifact) { a.FormatVersion = 2 },
		},
		{
			name:   "BadMode",
			mutate: func(a *Artifact) { a.Mode = "dropoff" },
		},
		{
			name:   "BadTargetBounds",
			mutate: func(a *Artifact) { a.Target.Min = a.Target.Max },
		},
		{
			name:   "NoFeatures",
			mutate: func(a *Artifact) { a.Features = nil },
		},
		{
			name: "DuplicatedFeature",
			mutate: func(a *Artifact) {
				a.Features = append(a.Features, FeatureSpec{Name: "pickup_distance_km", Kind: FeatureKindNumeric, Max: 1})
			},
		},
		{
			name:   "BadFeatureKind",
			mutate: func(a *Artifact) { a.Features[0].Kind = "ordinal" },
		},
		{
			name:   "BadFeatureBounds",
			mutate: func(a *Artifact) { a.Features[0].Min = 31 },
		},
		{
			name:   "CategoricalWithoutLevels",
			mutate: func(a *Artifact) { a.Features[1].Levels = nil },
		},
		{
			name:   "NoTrees",
			mutate: func(a *Artifact) { a.Trees = nil },
		},
		{
			name:   "EmptyTree",
			mutate: func(a *Artifact) { a.Trees = append(a.Trees, Tree{}) },
		},
		{
			name:   "SplitSlotOutOfRange",
			mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Feature = 4 },
		},
		{
			name:   "BackwardChild",
			mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Left = 0 },
		},
		{
			name:   "ChildOutOfRange",
			mutate: func(a *Artifact) { a.Trees[0].Nodes[0].Right = 3 },
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			artifact := makeValidArtifact()
			require.NoError(t, artifact.Validate())
			c.mutate(artifact)
			assert.Error(t, artifact.Validate())
		})
	}
}

func TestValidateDegenerateNumericBounds(t *testing.T) {
	// max == min is a valid (degenerate) scaling, the slot normalizes to 0
	artifact := makeValidArtifact()
	artifact.Features[0].Min = 30
	artifact.Features[0].Max = 30
	assert.NoError(t, artifact.Validate())
}
