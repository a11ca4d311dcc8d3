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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeEnsembleArtifact() *Artifact {
	return &Artifact{
		Format:        ArtifactFormat,
		FormatVersion: ArtifactFormatVersion,
		Mode:          ModePickup,
		Target:        TargetSpec{Name: "eta_minutes", Min: 10, Max: 110},
		Features: []FeatureSpec{
			{Name: "pickup_distance_km", Kind: FeatureKindNumeric, Min: 0, Max: 10},
		},
		BaseScore: 0.1,
		Trees: []Tree{
			{Nodes: []Node{
				// distance < 5km (0.5 normalized) goes left
				{Feature: 0, Threshold: 0.5, Left: 1, Right: 2, DefaultLeft: true},
				{Leaf: true, Value: 0.2},
				{Leaf: true, Value: 0.6},
			}},
			{Nodes: []Node{
				{Feature: 0, Threshold: 0.8, Left: 1, Right: 2, DefaultLeft: false},
				{Leaf: true, Value: -0.1},
				{Leaf: true, Value: 0.1},
			}},
		},
	}
}

func TestEvaluateKnownScores(t *testing.T) {
	artifact := makeEnsembleArtifact()

	// 2km -> 0.2 normalized: left + left = 0.1 + 0.2 - 0.1 = 0.2
	score := artifact.Evaluate(artifact.Vectorize(map[string]interface{}{"pickup_distance_km": 2.0}))
	assert.InDelta(t, 0.2, score, 1e-9)

	// 9km -> 0.9 normalized: right + right = 0.1 + 0.6 + 0.1 = 0.8
	score = artifact.Evaluate(artifact.Vectorize(map[string]interface{}{"pickup_distance_km": 9.0}))
	assert.InDelta(t, 0.8, score, 1e-9)
}

func TestEvaluateDefaultRouting(t *testing.T) {
	artifact := makeEnsembleArtifact()

	// Missing value is NaN: tree 1 defaults left (0.2), tree 2 defaults
	// right (0.1)
	vector := artifact.Vectorize(map[string]interface{}{})
	assert.True(t, math.IsNaN(vector[0]))
	score := artifact.Evaluate(vector)
	assert.InDelta(t, 0.4, score, 1e-9)
}

func TestDenormalize(t *testing.T) {
	artifact := makeEnsembleArtifact()
	assert.InDelta(t, 10.0, artifact.Denormalize(0), 1e-9)
	assert.InDelta(t, 110.0, artifact.Denormalize(1), 1e-9)
	assert.InDelta(t, 60.0, artifact.Denormalize(0.5), 1e-9)
	// No clamping
	assert.InDelta(t, 130.0, artifact.Denormalize(1.2), 1e-9)
}

func TestPredict(t *testing.T) {
	artifact := makeEnsembleArtifact()
	etaNormalized, etaMinutes := artifact.Predict(map[string]interface{}{"pickup_distance_km": 2.0})
	assert.InDelta(t, 0.2, etaNormalized, 1e-9)
	assert.InDelta(t, 30.0, etaMinutes, 1e-9)
}
