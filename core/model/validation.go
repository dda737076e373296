package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// CheckXY は学習データの形状を検証し、サンプル数と特徴量数を返す
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return nSamples, nFeatures, nil
}

// CheckFeatures は予測時の特徴量数が学習時と一致するか検証する
func CheckFeatures(op string, X mat.Matrix, nFeatures int) (nSamples int, err error) {
	nSamples, cols := X.Dims()
	if cols != nFeatures {
		return 0, errors.NewDimensionError(op, nFeatures, cols, 1)
	}
	return nSamples, nil
}

// Labels は n×1 の列ベクトルをクラス番号のスライスに変換する
func Labels(op string, y mat.Matrix) ([]int, error) {
	rows, _ := y.Dims()
	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		if v != math.Trunc(v) || v < 0 {
			return nil, errors.NewValidationError("y", "class labels must be non-negative integers", v)
		}
		labels[i] = int(v)
	}
	return labels, nil
}

// UniqueClasses はラベルの一意な値を昇順で返す
func UniqueClasses(labels []int) []int {
	seen := make(map[int]bool, len(labels))
	classes := make([]int, 0)
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}
	sort.Ints(classes)
	return classes
}

// ColumnVector はクラス番号のスライスを n×1 の行列にする
func ColumnVector(labels []int) *mat.Dense {
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = float64(l)
	}
	return mat.NewDense(len(labels), 1, data)
}
