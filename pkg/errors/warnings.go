package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告は処理を止めずに報告する。pkg/log が SetZerologWarnFunc で
// zerolog に流し込むまでは標準の log パッケージに出力される
var (
	warnMu      sync.Mutex
	warnHandler = func(w error) { log.Printf("numclass-Warning: %v\n", w) }
	// pkg/log からの import 循環を避けるため関数で受け取る
	zerologWarn func(error)
)

// SetWarningHandler は zerolog 未設定時に使う警告ハンドラを差し替える
func SetWarningHandler(handler func(w error)) {
	warnMu.Lock()
	warnHandler = handler
	warnMu.Unlock()
}

// SetZerologWarnFunc は警告を構造化ログに流す関数を設定する。nil で解除
func SetZerologWarnFunc(fn func(warning error)) {
	warnMu.Lock()
	zerologWarn = fn
	warnMu.Unlock()
}

// Warn は警告を報告する
func Warn(w error) {
	warnMu.Lock()
	defer warnMu.Unlock()
	switch {
	case zerologWarn != nil:
		zerologWarn(w)
	case warnHandler != nil:
		warnHandler(w)
	}
}

// ConvergenceWarning は L-BFGS や SMO が反復上限で打ち切られたことを表す
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	detail := w.Message
	if detail == "" {
		return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, detail)
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message)
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}
