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

// Mode is a prediction flavor, either the time to pick an order up or the
// time to deliver it. Each mode is served by its own model.
type Mode string

const (
	ModePickup   Mode = "pickup"
	ModeDelivery Mode = "delivery"
)

// Modes lists the supported prediction modes
var Modes = []Mode{ModePickup, ModeDelivery}

// ParseMode parses a mode from its string representation
func ParseMode(modeStr string) (Mode, error) {
	for _, mode := range Modes {
		if string(mode) == modeStr {
			return mode, nil
		}
	}
	return Mode(""), &UnknownModeError{Mode: modeStr}
}
