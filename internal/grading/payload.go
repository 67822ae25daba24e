package grading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// The decoders below report ok=false for any payload that does not have the shape the
// question type expects. Callers treat that as an incorrect answer.

func decodeIndex(payload json.RawMessage) (int, bool) {
	var v int
	if err := json.Unmarshal(payload, &v); err != nil {
		return 0, false
	}
	return v, true
}

func decodeIndices(payload json.RawMessage) ([]int, bool) {
	var v []int
	if err := json.Unmarshal(payload, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func decodeBool(payload json.RawMessage) (bool, bool) {
	var v bool
	if err := json.Unmarshal(payload, &v); err != nil {
		return false, false
	}
	return v, true
}

// submittedPair keeps absent sides distinguishable from index 0.
type submittedPair struct {
	Left  *int `json:"left"`
	Right *int `json:"right"`
}

// decodePairs rejects the whole payload when any pair lacks a side.
func decodePairs(payload json.RawMessage) ([]models.MatchPair, bool) {
	var raw []submittedPair
	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		return nil, false
	}
	pairs := make([]models.MatchPair, 0, len(raw))
	for _, p := range raw {
		if p.Left == nil || p.Right == nil {
			return nil, false
		}
		pairs = append(pairs, models.MatchPair{Left: *p.Left, Right: *p.Right})
	}
	return pairs, true
}

func decodeText(payload json.RawMessage) (string, bool) {
	var v string
	if err := json.Unmarshal(payload, &v); err != nil {
		return "", false
	}
	return v, true
}

// decodeTexts accepts a single string or an array of strings.
func decodeTexts(payload json.RawMessage) ([]string, bool) {
	if s, ok := decodeText(payload); ok {
		return []string{s}, true
	}
	var v []string
	if err := json.Unmarshal(payload, &v); err != nil || v == nil {
		return nil, false
	}
	return v, true
}

// decodeNumber accepts a JSON number or a string holding one.
func decodeNumber(payload json.RawMessage) (float64, bool) {
	var v float64
	if err := json.Unmarshal(payload, &v); err == nil {
		return v, true
	}
	s, ok := decodeText(payload)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
