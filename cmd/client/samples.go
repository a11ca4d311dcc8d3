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

package client

import "fmt"

// Canned feature payloads for manual testing, one typical Chongqing order
// per mode.
var samplePayloads = map[string]map[string]interface{}{
	"pickup": {
		"city":               "Chongqing",
		"lng":                106.55,
		"lat":                29.56,
		"aoi_type":           1,
		"pickup_distance_km": 2.3,
		"accept_hour":        10,
		"pickup_hour":        11,
		"accept_day":         9,
		"pickup_day":         9,
		"accept_month":       10,
		"pickup_month":       10,
		"accept_date":        "2025-10-09",
		"pickup_date":        "2025-10-09",
		"hour_bucket":        "Afternoon",
		"day_type":           "Weekday",
	},
	"delivery": {
		"city":                 "Chongqing",
		"lng":                  106.55,
		"lat":                  29.56,
		"aoi_type":             1,
		"delivery_distance_km": 2.8,
		"accept_hour":          10,
		"delivery_hour":        11,
		"accept_day":           9,
		"delivery_day":         9,
		"accept_month":         10,
		"delivery_month":       10,
		"accept_date":          "2025-10-09",
		"delivery_date":        "2025-10-09",
		"day_type":             "Weekday",
		"hour_bucket":          "Afternoon",
	},
}

func retrieveSamplePayload(mode string) (map[string]interface{}, error) {
	payload, ok := samplePayloads[mode]
	if !ok {
		return nil, fmt.Errorf("no sample payload for mode %q", mode)
	}
	// Commands may override values in the returned map
	copied := make(map[string]interface{}, len(payload))
	for name, value := range payload {
		copied[name] = value
	}
	return copied, nil
}
