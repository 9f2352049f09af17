package services

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("```(?:json|JSON)?[ \t]*\n?")

// cleanModelJSON strips the markdown fences models like to wrap JSON in.
func cleanModelJSON(s string) string {
	return strings.TrimSpace(codeFence.ReplaceAllString(s, ""))
}

// decodeModelJSON decodes exactly one JSON value from text into dst.
// Trailing prose or a second value is an error.
func decodeModelJSON(text string, dst any) error {
	cleaned := cleanModelJSON(text)
	if cleaned == "" {
		return errors.New("empty model output")
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
