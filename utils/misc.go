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

package utils

import (
	"math"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// RunningInDocker tells whether the process runs inside the etaserve
// container image, which sets RUNNING_IN_DOCKER=true unconditionally.
func RunningInDocker() bool {
	return strings.ToLower(os.Getenv("RUNNING_IN_DOCKER")) == "true"
}

// ExpandPath resolves a leading "~" to the current user home directory.
func ExpandPath(path string) (string, error) {
	return homedir.Expand(path)
}

// Round rounds a value to the given number of decimals
func Round(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}

func CopyStrMap(src map[string]string) map[string]string {
	result := make(map[string]string, len(src))
	for name, value := range src {
		result[name] = value
	}

	return result
}
