// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package generation

import "errors"

var (
	// ErrGeneratorRequired is returned when a generator is not provided.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrInvalidMaxRetries indicates a non-positive attempt budget.
	ErrInvalidMaxRetries = errors.New("max retries must be positive")

	// ErrInvalidTimeout indicates a non-positive per-attempt timeout.
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrGenerationUnavailable indicates the backend refused or failed the
	// health probe. Retryable.
	ErrGenerationUnavailable = errors.New("generation backend unavailable")

	// ErrGenerationTimeout indicates an attempt exceeded its deadline
	// before producing output. Retryable.
	ErrGenerationTimeout = errors.New("generation attempt timed out")

	// ErrRetriesExhausted indicates every attempt failed. Never surfaces
	// to callers; the client streams the fallback answer instead.
	ErrRetriesExhausted = errors.New("generation retries exhausted")

	// ErrStreamInterrupted indicates the backend failed after answer
	// tokens were already forwarded. The stream cannot be retried without
	// repeating delivered output, so the failure is terminal.
	ErrStreamInterrupted = errors.New("stream interrupted mid-answer")

	// ErrInvalidContextSize indicates a non-positive prompt context budget.
	ErrInvalidContextSize = errors.New("context size must be positive")
)
