package model

import (
	"encoding"

	"gonum.org/v1/gonum/mat"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y はクラス番号の n×1 列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対するクラス番号を n×1 列ベクトルで返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator はアンサンブルに登録できる分類器のインターフェース
//
// 学習済みの状態は MarshalBinary で書き出し、同じ種類の未学習インスタンスの
// UnmarshalBinary で復元できなければならない
type Estimator interface {
	Fitter
	Predictor
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}
