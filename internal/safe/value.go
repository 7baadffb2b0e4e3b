// Copyright 2023 The MaxMQ Authors
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

// Package safe provides values which can be shared between goroutines.
package safe

import "sync"

// Value holds a value which can be read and written concurrently. The zero
// Value holds nothing.
type Value[T any] struct {
	mtx    sync.RWMutex
	val    T
	stored bool
}

// Load returns the value, and false when nothing has been stored yet.
func (v *Value[T]) Load() (T, bool) {
	v.mtx.RLock()
	defer v.mtx.RUnlock()
	return v.val, v.stored
}

// Store replaces the value.
func (v *Value[T]) Store(val T) {
	v.mtx.Lock()
	defer v.mtx.Unlock()
	v.val = val
	v.stored = true
}
