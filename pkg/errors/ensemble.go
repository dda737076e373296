package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// DatasetShapeError は特徴量とラベルの件数が一致しないデータセットを表します。
// 学習処理を始める前に検出されます。
type DatasetShapeError struct {
	TrainFeatures int
	TrainLabels   int
	TestFeatures  int
	TestLabels    int
	Reason        string
}

func (e *DatasetShapeError) Error() string {
	msg := fmt.Sprintf("numclass: dataset lists must have equal dimensions: train %d/%d, test %d/%d",
		e.TrainFeatures, e.TrainLabels, e.TestFeatures, e.TestLabels)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DatasetShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("train_features", e.TrainFeatures).
		Int("train_labels", e.TrainLabels).
		Int("test_features", e.TestFeatures).
		Int("test_labels", e.TestLabels).
		Str("reason", e.Reason).
		Str("type", "DatasetShapeError")
}

// NewDatasetShapeError は新しいDatasetShapeErrorを作成し、スタックトレースを付与します。
func NewDatasetShapeError(trainFeatures, trainLabels, testFeatures, testLabels int, reason string) error {
	err := &DatasetShapeError{
		TrainFeatures: trainFeatures,
		TrainLabels:   trainLabels,
		TestFeatures:  testFeatures,
		TestLabels:    testLabels,
		Reason:        reason,
	}
	return errors.WithStack(err)
}

// UnsupportedKindError はレジストリに存在しないモデル種別が指定された場合のエラーです。
type UnsupportedKindError struct {
	Kind string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("numclass: unsupported model name: %s", e.Kind)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedKindError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("kind", e.Kind).Str("type", "UnsupportedKindError")
}

// NewUnsupportedKindError は新しいUnsupportedKindErrorを作成し、スタックトレースを付与します。
func NewUnsupportedKindError(kind string) error {
	return errors.WithStack(&UnsupportedKindError{Kind: kind})
}

// TrainingError はモデルの学習に失敗した場合の致命的なエラーです。
// Fold が -1 の場合は交差検証ではなく訓練データ全体での学習を表します。
type TrainingError struct {
	Kind string
	Fold int
	Err  error
}

func (e *TrainingError) Error() string {
	if e.Fold >= 0 {
		return fmt.Sprintf("numclass: training %s failed on fold %d: %v", e.Kind, e.Fold, e.Err)
	}
	return fmt.Sprintf("numclass: training %s failed: %v", e.Kind, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("kind", e.Kind).
		Int("fold", e.Fold).
		AnErr("cause", e.Err).
		Str("type", "TrainingError")
}

// NewTrainingError は新しいTrainingErrorを作成し、スタックトレースを付与します。
func NewTrainingError(kind string, fold int, err error) error {
	return errors.WithStack(&TrainingError{Kind: kind, Fold: fold, Err: err})
}

// UnknownModelError は学習済みでないモデル名で予測を要求した場合のエラーです。
type UnknownModelError struct {
	Name      string
	Available []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("numclass: model %q is not recognized (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnknownModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("name", e.Name).
		Strs("available", e.Available).
		Str("type", "UnknownModelError")
}

// NewUnknownModelError は新しいUnknownModelErrorを作成し、スタックトレースを付与します。
func NewUnknownModelError(name string, available []string) error {
	return errors.WithStack(&UnknownModelError{Name: name, Available: available})
}

// PersistenceError はモデルの保存・読み込み時のI/Oエラーです。
type PersistenceError struct {
	Op   string // "save", "load", "mkdir", "readdir"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("numclass: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *PersistenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		AnErr("cause", e.Err).
		Str("type", "PersistenceError")
}

// NewPersistenceError は新しいPersistenceErrorを作成し、スタックトレースを付与します。
func NewPersistenceError(op, path string, err error) error {
	return errors.WithStack(&PersistenceError{Op: op, Path: path, Err: err})
}
