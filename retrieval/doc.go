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


// Package retrieval finds the stored chunks most relevant to a question.
//
// The Engine type embeds the question and runs a similarity search over
// the vector index, applying a similarity threshold and a top-k limit.
// Failures of the embedder or the index degrade retrieval to an empty
// candidate set rather than failing the query; the Monitor interface
// exposes those degradations to interested callers.
package retrieval
