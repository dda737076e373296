package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError は推定器内部の panic を回収したエラー
type PanicError struct {
	Op    string // panic を回収した操作名 (例: "SVC.Fit")
	Value any    // panic に渡された値
	Stack string // 回収時点のスタック
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
}

// Unwrap は panic 値がエラーだった場合にそれを返す
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// String はスタックを含めた詳細を返す
func (e *PanicError) String() string {
	return e.Error() + "\nStack trace:\n" + e.Stack
}

// NewPanicError は現在のスタックを記録した PanicError を作る
func NewPanicError(op string, value any) *PanicError {
	return &PanicError{Op: op, Value: value, Stack: string(debug.Stack())}
}

// Recover は defer で使い、panic を *err に変換する
// すでにエラーが返されていた場合は panic の情報でそれをラップする
//
//	func (m *SVC) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "SVC.Fit")
//	    ...
//	}
func Recover(err *error, op string) {
	r := recover()
	if r == nil {
		return
	}
	perr := NewPanicError(op, r)
	if *err == nil {
		*err = perr
		return
	}
	*err = errors.Wrap(*err, perr.Error())
}

// SafeExecute は fn を実行し、panic を PanicError として返す
func SafeExecute(op string, fn func() error) (err error) {
	defer Recover(&err, op)
	return fn()
}
