package model

import (
	"sync"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// ModelState は推定器の学習状態。gob で保存する状態構造体に埋め込む
type ModelState struct {
	Fitted    bool
	NFeatures int
	NSamples  int
}

// StateManager は推定器の学習状態を排他制御付きで保持する
type StateManager struct {
	mu    sync.RWMutex
	state ModelState
}

// NewStateManager は未学習の StateManager を返す
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted は学習済みかどうかを返す
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Fitted
}

// MarkFitted は学習時の次元を記録し、学習済みにする
func (s *StateManager) MarkFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	s.state = ModelState{Fitted: true, NFeatures: nFeatures, NSamples: nSamples}
	s.mu.Unlock()
}

// Reset は未学習の状態に戻す
func (s *StateManager) Reset() {
	s.mu.Lock()
	s.state = ModelState{}
	s.mu.Unlock()
}

// Dimensions は学習時の特徴量数とサンプル数を返す
func (s *StateManager) Dimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.NFeatures, s.state.NSamples
}

// RequireFitted は未学習なら NotFittedError を返す
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// Snapshot は保存用に現在の状態をコピーして返す
func (s *StateManager) Snapshot() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Restore は保存済みの状態を復元する
func (s *StateManager) Restore(state ModelState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
