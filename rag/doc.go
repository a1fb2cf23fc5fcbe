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


// Package rag orchestrates retrieval-augmented answering.
//
// The Service type runs the full question path: retrieve relevant chunks,
// assemble a grounded prompt, stream the generated answer. Answers arrive
// as a channel of events, each either a token chunk or a terminal
// complete/error frame; the complete frame carries the sources that
// grounded the answer and whether any stage degraded.
package rag
