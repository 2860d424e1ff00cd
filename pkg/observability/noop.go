// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"net/http"
	"time"
)

// NoopManager returns a no-operation Manager. Use this when observability is
// completely disabled.
func NoopManager() *Manager {
	return &Manager{}
}

// NoopMetrics is a Metrics implementation that does nothing; it backs
// GetGlobalMetrics when nothing has been wired.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(context.Context, string)             {}
func (NoopMetrics) RecordAgeUp(context.Context)                       {}
func (NoopMetrics) RecordRegression(context.Context)                  {}
func (NoopMetrics) RecordGenerationalDeath(context.Context)           {}
func (NoopMetrics) RecordGenerationalSuccess(context.Context)         {}
func (NoopMetrics) RecordCFIASplit(context.Context)                   {}
func (NoopMetrics) RecordTokenCost(context.Context, int)              {}
func (NoopMetrics) RecordKarmaDelta(context.Context, float64)         {}
func (NoopMetrics) SetTokenPool(float64)                              {}
func (NoopMetrics) SetKarmaPool(float64)                              {}
func (NoopMetrics) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration, int) {
}

// Handler returns a handler that reports 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

var _ Metrics = NoopMetrics{}
