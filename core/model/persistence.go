package model

import (
	"bytes"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/numclass/pkg/errors"
)

// SaveModel はモデルをファイルに保存する
//
// 一時ファイルに書き込んでから rename するため、途中で失敗しても
// 既存のファイルは壊れない
//
// 使用例:
//
//	err := model.SaveModel(envelope, "models/svc.gob")
func SaveModel(model interface{}, filename string) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp*")
	if err != nil {
		return errors.NewPersistenceError("create", filename, err)
	}
	defer os.Remove(tmp.Name())

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close()
		return errors.NewPersistenceError("encode", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewPersistenceError("close", filename, err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.NewPersistenceError("rename", filename, err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
// 使用例:
//
//	var envelope classifier.Envelope
//	err := model.LoadModel(&envelope, "models/svc.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewPersistenceError("open", filename, err)
	}
	defer file.Close()

	if err := LoadModelFromReader(model, file); err != nil {
		return errors.NewPersistenceError("decode", filename, err)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// EncodeState は推定器の学習済み状態を gob のバイト列にする
// MarshalBinary の実装から呼ばれる
func EncodeState(state interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := SaveModelToWriter(state, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeState は EncodeState で作られたバイト列を state に復元する
func DecodeState(data []byte, state interface{}) error {
	return LoadModelFromReader(state, bytes.NewReader(data))
}
