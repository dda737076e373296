package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/YuminosukeSato/numclass/classifier"
	"github.com/YuminosukeSato/numclass/dataset/numbers"
	"github.com/YuminosukeSato/numclass/pkg/errors"
	"github.com/YuminosukeSato/numclass/pkg/log"
)

// Request validation messages returned in error_msg.
const (
	MsgInvalidJSON        = "Request body does not contain valid JSON."
	MsgValuesMissing      = "The 'values' key missing."
	MsgValuesNotList      = "The 'values' value must be a list."
	MsgValuesNotInts      = "The 'values' elements must be integers."
	MsgModelNameNotStr    = "The 'model_name' value must be a string."
	MsgModelNotRecognized = "Model name is not recognized"
	MsgNoTrainingLog      = "Training log is not configured."
	MsgLimitInvalid       = "The 'limit' value must be a positive integer."
)

const (
	maxBodyBytes     = 1 << 20
	defaultRunsLimit = 20
)

// envelope is the success/result wrapper of every API response.
type envelope struct {
	Success bool `json:"success"`
	Result  any  `json:"result"`
}

type errorResult struct {
	ErrorMsg string `json:"error_msg"`
}

// errorBody is the transport-level error for requests that cannot be parsed.
type errorBody struct {
	Error string `json:"error"`
}

type predictRequest struct {
	values    []int64
	modelName string
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.GetLoggerWithName("server").Error("Failed to encode JSON", log.ErrAttrKey, err)
	}
}

func writeResult(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Result: result})
}

func writeFailure(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: false, Result: errorResult{ErrorMsg: msg}})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeResult(w, map[string][]string{"models": classifier.KindNames()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"models": len(s.classifier.Models()),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: MsgInvalidJSON})
		return
	}

	var doc any
	if err := decodeStrict(body, &doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: MsgInvalidJSON})
		return
	}

	req, msg := parsePredictRequest(doc)
	if msg != "" {
		writeFailure(w, msg)
		return
	}

	pairs, err := s.classify(req)
	if err != nil {
		var unknown *errors.UnknownModelError
		if errors.As(err, &unknown) {
			writeFailure(w, MsgModelNotRecognized)
			return
		}
		s.logger.Error("Prediction failed",
			log.RequestIDKey, RequestIDFromContext(r.Context()),
			log.ModelNameKey, req.modelName,
			log.ErrAttrKey, err,
		)
		writeFailure(w, err.Error())
		return
	}

	writeResult(w, map[string]any{"classification": pairs})
}

// decodeStrict decodes exactly one JSON value, keeping numbers as json.Number.
func decodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// parsePredictRequest validates the request document and returns the
// error_msg for the first violation, checking values before model_name.
func parsePredictRequest(doc any) (predictRequest, string) {
	obj, ok := doc.(map[string]any)
	if !ok {
		return predictRequest{}, MsgValuesMissing
	}

	raw, ok := obj["values"]
	if !ok {
		return predictRequest{}, MsgValuesMissing
	}
	list, ok := raw.([]any)
	if !ok {
		return predictRequest{}, MsgValuesNotList
	}

	req := predictRequest{values: make([]int64, len(list))}
	for i, elem := range list {
		num, ok := elem.(json.Number)
		if !ok {
			return predictRequest{}, MsgValuesNotInts
		}
		// 1.0 や 1e3 は整数として扱わない
		v, err := strconv.ParseInt(num.String(), 10, 64)
		if err != nil {
			return predictRequest{}, MsgValuesNotInts
		}
		req.values[i] = v
	}

	switch name := obj["model_name"].(type) {
	case nil:
	case string:
		req.modelName = name
	default:
		return predictRequest{}, MsgModelNameNotStr
	}
	return req, ""
}

// classify labels every value, consulting the cache first.
func (s *Server) classify(req predictRequest) ([][2]any, error) {
	labels := make([]string, len(req.values))
	var missIdx []int
	var missX [][]float64

	for i, v := range req.values {
		if s.cache != nil {
			if label, ok := s.cache.Get(cacheKey{value: v, model: req.modelName}); ok {
				labels[i] = label
				continue
			}
		}
		missIdx = append(missIdx, i)
		missX = append(missX, numbers.Encode(int(v)))
	}

	// 空でも呼び出してmodel_nameを検証する
	predicted, err := s.classifier.PredictBatch(missX, req.modelName)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		labels[i] = predicted[j]
		if s.cache != nil {
			s.cache.Add(cacheKey{value: req.values[i], model: req.modelName}, predicted[j])
		}
	}

	pairs := make([][2]any, len(req.values))
	for i, v := range req.values {
		pairs[i] = [2]any{v, labels[i]}
	}
	return pairs, nil
}

func (s *Server) handleTrainingRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: MsgNoTrainingLog})
		return
	}

	limit := defaultRunsLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeFailure(w, MsgLimitInvalid)
			return
		}
		limit = n
	}

	runs, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read training log",
			log.RequestIDKey, RequestIDFromContext(r.Context()),
			log.ErrAttrKey, err,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		return
	}
	writeResult(w, map[string]any{"runs": runs})
}
