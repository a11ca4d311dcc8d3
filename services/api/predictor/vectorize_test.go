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

func makeScalingArtifact() *Artifact {
	return &Artifact{
		Format:        ArtifactFormat,
		FormatVersion: ArtifactFormatVersion,
		Mode:          ModeDelivery,
		Target:        TargetSpec{Name: "eta_minutes", Min: 0, Max: 100},
		Features: []FeatureSpec{
			{Name: "delivery_distance_km", Kind: FeatureKindNumeric, Min: 0, Max: 40},
			{Name: "aoi_type", Kind: FeatureKindCategorical, Levels: []string{"1", "2", "3"}},
			{Name: "accept_hour", Kind: FeatureKindNumeric, Min: 8, Max: 8},
		},
		BaseScore: 0,
		Trees:     []Tree{{Nodes: []Node{{Leaf: true, Value: 0}}}},
	}
}

func TestVectorizeLayout(t *testing.T) {
	artifact := makeScalingArtifact()
	assert.Equal(t, 5, artifact.NumSlots())

	vector := artifact.Vectorize(map[string]interface{}{
		"delivery_distance_km": 10.0,
		"aoi_type":             "2",
		"accept_hour":          8.0,
	})
	assert.Equal(t, []float64{0.25, 0, 1, 0, 0}, vector)
}

func TestVectorizeNumericString(t *testing.T) {
	// Numeric strings are coerced to floats, like the original columns
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{
		"delivery_distance_km": "20",
	})
	assert.Equal(t, 0.5, vector[0])
}

func TestVectorizeDegenerateBounds(t *testing.T) {
	// max == min normalizes to 0 whatever the value
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{
		"accept_hour": 17.0,
	})
	assert.Equal(t, 0.0, vector[4])
}

func TestVectorizeMissingNumeric(t *testing.T) {
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{})
	assert.True(t, math.IsNaN(vector[0]))
	assert.True(t, math.IsNaN(vector[4]))
}

func TestVectorizeNonNumericValue(t *testing.T) {
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{
		"delivery_distance_km": "far",
	})
	assert.True(t, math.IsNaN(vector[0]))
}

func TestVectorizeCategoricalFromNumber(t *testing.T) {
	// An aoi_type of 1 matches the level "1"
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{
		"aoi_type": 1.0,
	})
	assert.Equal(t, []float64{1, 0, 0}, vector[1:4])
}

func TestVectorizeUnknownLevel(t *testing.T) {
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{
		"aoi_type": "9",
	})
	assert.Equal(t, []float64{0, 0, 0}, vector[1:4])
}

func TestVectorizeMissingCategorical(t *testing.T) {
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{})
	assert.Equal(t, []float64{0, 0, 0}, vector[1:4])
}

func TestVectorizeIgnoresUnknownKeys(t *testing.T) {
	artifact := makeScalingArtifact()
	vector := artifact.Vectorize(map[string]interface{}{
		"delivery_distance_km": 40.0,
		"mode":                 "delivery",
		"courier_id":           "c-1234",
	})
	assert.Equal(t, 1.0, vector[0])
	assert.Len(t, vector, 5)
}
