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

import "math"

func (tree *Tree) evaluate(vector []float64) float64 {
	node := tree.Nodes[0]
	for !node.Leaf {
		value := vector[node.Feature]
		if math.IsNaN(value) {
			if node.DefaultLeft {
				node = tree.Nodes[node.Left]
			} else {
				node = tree.Nodes[node.Right]
			}
		} else if value < node.Threshold {
			node = tree.Nodes[node.Left]
		} else {
			node = tree.Nodes[node.Right]
		}
	}
	return node.Value
}

// Evaluate computes the normalized ensemble score for a feature vector
func (a *Artifact) Evaluate(vector []float64) float64 {
	score := a.BaseScore
	for treeIdx := range a.Trees {
		score += a.Trees[treeIdx].evaluate(vector)
	}
	return score
}

// Denormalize maps a normalized score back to target units (minutes).
// The score is intentionally not clamped to the target bounds.
func (a *Artifact) Denormalize(score float64) float64 {
	return score*(a.Target.Max-a.Target.Min) + a.Target.Min
}

// Predict runs the full pipeline on a raw payload and returns the
// normalized score and the denormalized ETA in minutes.
func (a *Artifact) Predict(payload map[string]interface{}) (float64, float64) {
	score := a.Evaluate(a.Vectorize(payload))
	return score, a.Denormalize(score)
}
