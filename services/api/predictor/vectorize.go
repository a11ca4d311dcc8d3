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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// asFloat coerces a JSON payload value to a float, accepting numbers and
// numeric strings.
func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// asLevel coerces a JSON payload value to a categorical level, numbers are
// formatted the shortest way so that e.g. an aoi_type of 1 matches the level
// "1".
func asLevel(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Vectorize builds the feature vector of the artifact from a raw payload.
//
// Numeric features are min-max normalized, a degenerate max==min bound maps
// to 0, a missing or non-numeric value maps to NaN and is routed by the
// trees' default branches. Categorical features are one-hot encoded, an
// unknown level or a missing feature leaves all its slots at 0. Payload keys
// that match no declared feature are ignored.
func (a *Artifact) Vectorize(payload map[string]interface{}) []float64 {
	vector := make([]float64, a.NumSlots())
	slot := 0
	for _, feature := range a.Features {
		switch feature.Kind {
		case FeatureKindCategorical:
			value, ok := payload[feature.Name]
			level := ""
			if ok {
				level = asLevel(value)
			}
			for _, featureLevel := range feature.Levels {
				if ok && featureLevel == level {
					vector[slot] = 1
				}
				slot++
			}
		default:
			value, ok := payload[feature.Name]
			if !ok {
				vector[slot] = math.NaN()
				slot++
				continue
			}
			parsed, numeric := asFloat(value)
			if !numeric {
				vector[slot] = math.NaN()
				slot++
				continue
			}
			if feature.Max == feature.Min {
				vector[slot] = 0
			} else {
				vector[slot] = (parsed - feature.Min) / (feature.Max - feature.Min)
			}
			slot++
		}
	}
	return vector
}
