// Package preprocessing provides label encoding for the classifiers.
package preprocessing

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/core/model"
	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// LabelEncoder はscikit-learn互換のラベルエンコーダー
// ラベルを 0..n_classes-1 のクラス番号に変換する
type LabelEncoder[T cmp.Ordered] struct {
	state *model.StateManager

	// Classes は学習したラベルの昇順リスト。インデックスがクラス番号になる
	Classes []T

	index map[T]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
//
// 使用例:
//
//	enc := preprocessing.NewLabelEncoder[string]()
//	y, err := enc.FitTransform([]string{"Fizz", "1", "Fizz"})
//	labels, err := enc.InverseTransform(predicted)
func NewLabelEncoder[T cmp.Ordered]() *LabelEncoder[T] {
	return &LabelEncoder[T]{state: model.NewStateManager()}
}

// Fit はラベルの一意な値を学習する
func (e *LabelEncoder[T]) Fit(labels []T) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	classes := slices.Clone(labels)
	slices.Sort(classes)
	e.setClasses(slices.Compact(classes), len(labels))
	return nil
}

func (e *LabelEncoder[T]) setClasses(classes []T, nSamples int) {
	e.Classes = classes
	e.index = make(map[T]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	e.state.MarkFitted(1, nSamples)
}

// Transform はラベルを n×1 のクラス番号列ベクトルに変換する
// 学習時に見ていないラベルはエラーになる
func (e *LabelEncoder[T]) Transform(labels []T) (*mat.Dense, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewModelError("LabelEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	data := make([]float64, len(labels))
	for i, l := range labels {
		idx, ok := e.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("y contains previously unseen label %v", l))
		}
		data[i] = float64(idx)
	}
	return mat.NewDense(len(labels), 1, data), nil
}

// FitTransform はFitとTransformを同時に実行する
func (e *LabelEncoder[T]) FitTransform(labels []T) (*mat.Dense, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform はクラス番号の列ベクトルを元のラベルに戻す
func (e *LabelEncoder[T]) InverseTransform(y mat.Matrix) ([]T, error) {
	if err := e.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	idx, err := model.Labels("LabelEncoder.InverseTransform", y)
	if err != nil {
		return nil, err
	}

	out := make([]T, len(idx))
	for i, c := range idx {
		if c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("class index %d out of range", c))
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}

// NClasses は学習したクラス数を返す
func (e *LabelEncoder[T]) NClasses() int {
	return len(e.Classes)
}

// IsFitted は学習済みかどうかを返す
func (e *LabelEncoder[T]) IsFitted() bool {
	return e.state.IsFitted()
}

// FromClasses は保存済みのクラスリストから学習済みエンコーダーを復元する
func FromClasses[T cmp.Ordered](classes []T) *LabelEncoder[T] {
	e := NewLabelEncoder[T]()
	e.setClasses(slices.Clone(classes), len(classes))
	return e
}
