// Copyright (c) 2023 The Disruptor Authors. All rights reserved.
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

package disruptor

import "math"

// minimumSequence returns the lowest value of the given sequences, or
// the supplied minimum when it is lower still. An empty slice yields
// the supplied minimum.
func minimumSequence(sequences []*Sequence, minimum int64) int64 {
	for _, s := range sequences {
		if v := s.Get(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

// fixedSequenceGroup presents an immutable set of sequences as a single
// Gate whose value is the minimum of its members.
type fixedSequenceGroup struct {
	sequences []*Sequence
}

func newFixedSequenceGroup(sequences []*Sequence) *fixedSequenceGroup {
	group := make([]*Sequence, len(sequences))
	copy(group, sequences)
	return &fixedSequenceGroup{sequences: group}
}

func (g *fixedSequenceGroup) Get() int64 {
	return minimumSequence(g.sequences, math.MaxInt64)
}
