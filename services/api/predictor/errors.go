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

import "fmt"

// UnknownModeError is raised when a prediction is requested for a mode that
// is neither "pickup" nor "delivery"
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("invalid mode %q, must be one of %v", e.Mode, Modes)
}

// ModelNotLoadedError is raised when a prediction is requested for a mode
// whose model isn't loaded
type ModelNotLoadedError struct {
	Mode Mode
}

func (e *ModelNotLoadedError) Error() string {
	return fmt.Sprintf("no model loaded for mode %q", e.Mode)
}
